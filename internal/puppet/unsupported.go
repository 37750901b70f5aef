package puppet

import "fmt"

// Operations the gateway protocol has no endpoint for. They fail
// immediately rather than time out against a request that can never
// be answered.

// ContactSelfQRCode would return the logged-in user's own QR code.
func (p *Puppet) ContactSelfQRCode() (string, error) {
	return "", fmt.Errorf("self qrcode: %w", ErrUnsupported)
}

// SetContactSelfName would rename the logged-in account.
func (p *Puppet) SetContactSelfName(name string) error {
	return fmt.Errorf("set self name: %w", ErrUnsupported)
}

// SetContactSelfSignature would change the account signature.
func (p *Puppet) SetContactSelfSignature(signature string) error {
	return fmt.Errorf("set self signature: %w", ErrUnsupported)
}

// SetContactAvatar would upload a new avatar for a contact.
func (p *Puppet) SetContactAvatar(id string, url string) error {
	return fmt.Errorf("set contact avatar: %w", ErrUnsupported)
}

// MessageRecall would retract a sent message.
func (p *Puppet) MessageRecall(messageID string) (bool, error) {
	return false, fmt.Errorf("message recall: %w", ErrUnsupported)
}

// ContactSearch would look up accounts by phone or weixin id.
func (p *Puppet) ContactSearch(query string) (string, error) {
	return "", fmt.Errorf("contact search: %w", ErrUnsupported)
}

// RoomAnnounce would read a room announcement back; the gateway only
// supports writing one.
func (p *Puppet) RoomAnnounce(roomID string) (string, error) {
	return "", fmt.Errorf("get room announce: %w", ErrUnsupported)
}
