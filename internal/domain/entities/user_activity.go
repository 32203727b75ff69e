package entities

import "time"

// MaxEngagementScore bounds the engagement score
const MaxEngagementScore = 1000

// UserActivity is the rolling per-(project, userIdentifier) counter set,
// updated on every confirmed transaction
type UserActivity struct {
	ProjectID             string    `json:"projectId"`
	UserIdentifier        string    `json:"userIdentifier"`
	SocialType            string    `json:"socialType"`
	WalletsCreated        int       `json:"walletsCreated"`
	TransactionsSent      int       `json:"transactionsSent"`
	TotalGasSpentUSD      float64   `json:"totalGasSpentUsd"`
	PaymasterTransactions int       `json:"paymasterTransactions"`
	UserPaidTransactions  int       `json:"userPaidTransactions"`
	ChainsUsed            []Chain   `json:"chainsUsed"`
	PreferredChain        Chain     `json:"preferredChain,omitempty"`
	FirstActive           time.Time `json:"firstActive"`
	LastActive            time.Time `json:"lastActive"`
	EngagementScore       int       `json:"engagementScore"`
}
