package models

// ReceiptSettings controls what the receipt renderer prints. The
// renderer itself lives outside this module; the settings still sync.
type ReceiptSettings struct {
	ShowPhone     bool   `json:"showPhone"`
	ShowLogo      bool   `json:"showLogo"`
	FooterMessage string `json:"footerMessage"`
}

// Settings is the per-tenant store configuration. It is synchronized as
// a single document and persisted inside the local snapshot.
type Settings struct {
	StoreName       string          `json:"storeName"`
	StoreAddress    string          `json:"storeAddress"`
	StorePhone      string          `json:"storePhone"`
	TaxPercent      int64           `json:"tax"`
	Currency        string          `json:"currency"`
	MemberDiscount  int64           `json:"memberDiscount"`
	PointRate       int64           `json:"pointRate"`
	AutoLockMinutes int             `json:"autoLockMinutes"`
	PINHash         string          `json:"pinHash,omitempty"`
	Receipt         ReceiptSettings `json:"receipt"`
}

// DefaultSettings returns settings for a freshly created store.
func DefaultSettings() Settings {
	return Settings{
		StoreName:       "SP24 POS",
		TaxPercent:      7,
		Currency:        "THB",
		MemberDiscount:  5,
		PointRate:       100,
		AutoLockMinutes: 10,
		Receipt: ReceiptSettings{
			ShowPhone:     true,
			ShowLogo:      true,
			FooterMessage: "Thank you, come again",
		},
	}
}

// MergeRemote overwrites local settings with a remotely synchronized
// copy. The PIN hash is device-local in practice: a remote document
// without one must not wipe the local hash.
func (s *Settings) MergeRemote(remote Settings) {
	pin := s.PINHash
	*s = remote
	if s.PINHash == "" {
		s.PINHash = pin
	}
}
