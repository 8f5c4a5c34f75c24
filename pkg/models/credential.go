package models

// CredentialSource tags where a credential came from
type CredentialSource string

const (
	SourceCached      CredentialSource = "cached"
	SourceRemoteFetch CredentialSource = "remote-fetch"
	SourceUserEntered CredentialSource = "user-entered"
	SourceEnvironment CredentialSource = "environment"
)

// Credential is the API key authorizing calls to the identification endpoint
type Credential struct {
	Token  string           `json:"-"`
	Source CredentialSource `json:"source"`
}

// KeyResponse is the payload of the credential-issuing endpoint
type KeyResponse struct {
	APIKey string `json:"apiKey"`
}
