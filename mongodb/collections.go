package mongodb

const (
	ClientsCollection  = "gatekeeper_clients"
	AccountsCollection = "gatekeeper_accounts"
	TokensCollection   = "gatekeeper_tokens"
)
