package domain

import (
	"strconv"
	"time"
)

// Identity is the authenticated caller.
type Identity struct {
	WalletAddress string `json:"wallet_address"`
	FID           int64  `json:"fid,omitempty"`
}

// ViewerKey prefers the Farcaster fid and falls back to the wallet.
func (i Identity) ViewerKey() string {
	if i.FID > 0 {
		return strconv.FormatInt(i.FID, 10)
	}
	return NormalizeSubjectKey(i.WalletAddress)
}

func (i Identity) SubjectKey() string {
	return NormalizeSubjectKey(i.WalletAddress)
}

type ViewerRecord struct {
	StoryID   string
	ViewerKey string
	ViewedAt  time.Time
}

type Profile struct {
	FID           int64  `json:"fid"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	PfpURL        string `json:"pfp_url"`
	// WalletAddress is the primary verified eth address, normalized.
	WalletAddress string `json:"wallet_address,omitempty"`
}

type Viewer struct {
	ViewerKey string    `json:"viewer_key"`
	ViewedAt  time.Time `json:"viewed_at"`
	Profile   *Profile  `json:"profile,omitempty"`
}

// FIDFromViewerKey reports whether key is a numeric Farcaster id.
func FIDFromViewerKey(key string) (int64, bool) {
	fid, err := strconv.ParseInt(key, 10, 64)
	if err != nil || fid <= 0 {
		return 0, false
	}
	return fid, true
}
