package puppet

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/schema"
)

// ContactPayload returns the contact record for id. A cache miss
// suspends the caller: a throttled sync request goes out and the call
// resolves when the matching contact-info push arrives, re-requesting
// on every timeout until ctx is cancelled.
func (p *Puppet) ContactPayload(ctx context.Context, id string) (*schema.ContactPayload, error) {
	if c, err := p.cache.GetContact(id); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}

	p.syncContact(id)
	return p.contacts.Await(ctx, id, awaitTimeout, func() {
		p.syncContact(id)
	})
}

// ContactList returns every cached contact id, waiting for the full
// list sync to complete first after a fresh login.
func (p *Puppet) ContactList(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	synced := p.contactsSynced
	p.mu.RUnlock()
	if !synced {
		p.syncContactList()
		if _, err := p.contactLists.Await(ctx, "contact-list", awaitTimeout, p.syncContactList); err != nil {
			return nil, err
		}
	}
	return p.cache.ContactIDs()
}

// ContactAlias returns the remark the logged-in user set for a
// contact.
func (p *Puppet) ContactAlias(ctx context.Context, id string) (string, error) {
	c, err := p.ContactPayload(ctx, id)
	if err != nil {
		return "", err
	}
	return c.FormName, nil
}

// SetContactAlias updates the remark and waits for the gateway's
// contact-remark confirmation.
func (p *Puppet) SetContactAlias(ctx context.Context, id, alias string) error {
	self, err := p.SelfID()
	if err != nil {
		return err
	}
	send := func() {
		err := p.conn.Request(gateway.APISetContactAlias, map[string]string{
			"my_account": self,
			"account":    id,
			"remark":     alias,
		})
		if err != nil {
			p.logger.Warn("set alias request failed")
		}
	}
	send()
	_, err = p.remarks.Await(ctx, id, awaitTimeout, send)
	return err
}

// ContactAvatar returns the avatar url of a contact.
func (p *Puppet) ContactAvatar(ctx context.Context, id string) (string, error) {
	c, err := p.ContactPayload(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Thumb, nil
}

func parseSex(s string) schema.Gender {
	switch s {
	case "1":
		return schema.GenderMale
	case "2":
		return schema.GenderFemale
	default:
		return schema.GenderUnknown
	}
}

// splitArea splits the gateway's "province_city" area field.
func splitArea(area string) (province, city string) {
	if area == "" {
		return "", ""
	}
	parts := strings.SplitN(area, "_", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// requireLogin is a shorthand for operations that need the self id.
func (p *Puppet) requireLogin() (string, error) {
	self, err := p.SelfID()
	if err != nil {
		return "", fmt.Errorf("operation requires login: %w", err)
	}
	return self, nil
}
