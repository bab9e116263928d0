package types

// ClientEndpoint identifies one running process of one installation.
type ClientEndpoint struct {
	ClientID   ClientID   `json:"client_id"`
	InstanceID InstanceID `json:"instance_id"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Platform   string     `json:"platform,omitempty"`
}
