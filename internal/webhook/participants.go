package webhook

import "walletnotify/internal/model"

// TransactionParticipants returns the end-user wallets touched by a transaction:
// source, primary destination and every entry of destinations, deduplicated in
// first-seen order. Vault accounts, exchanges and other peers are ignored.
func TransactionParticipants(tx *model.Transaction) []string {
	if tx == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(p *model.TransferPeer) {
		if !p.IsEndUserWallet() || p.WalletID == "" {
			return
		}
		if _, dup := seen[p.WalletID]; dup {
			return
		}
		seen[p.WalletID] = struct{}{}
		out = append(out, p.WalletID)
	}

	add(tx.Source)
	add(tx.Destination)
	for _, d := range tx.Destinations {
		add(d.Destination)
	}
	return out
}

// WalletParticipants returns the wallet a balance event refers to.
func WalletParticipants(b *model.WalletBalance) []string {
	if b == nil || b.WalletID == "" {
		return nil
	}
	return []string{b.WalletID}
}
