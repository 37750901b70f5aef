package puppet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/schema"
)

// FriendshipPayload returns a stored friendship event by id.
func (p *Puppet) FriendshipPayload(id string) (*schema.FriendshipPayload, error) {
	f, err := p.cache.GetFriendship(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("friendship %s: %w", id, ErrNotFound)
	}
	return f, nil
}

// FriendshipAdd sends a friend request and waits for the gateway's
// dispatch acknowledgement.
func (p *Puppet) FriendshipAdd(ctx context.Context, contactID, hello string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	if err := p.conn.Request(gateway.APIAddFriend, map[string]string{
		"my_account": self,
		"account":    contactID,
		"content":    hello,
	}); err != nil {
		return err
	}
	// The ack only confirms the request left the gateway; acceptance
	// arrives later as an add-friend push. Do not re-send on timeout:
	// repeated friend requests get accounts flagged.
	ctx, cancel := context.WithTimeout(ctx, 2*awaitTimeout)
	defer cancel()
	if _, err := p.friendAcks.Await(ctx, "add-friend", awaitTimeout, nil); err != nil {
		p.logger.Warn("friend request ack never arrived",
			zap.String("contact", contactID),
			zap.Error(err))
	}
	return nil
}

// FriendshipAccept accepts an inbound friend request previously stored
// as a receive friendship.
func (p *Puppet) FriendshipAccept(ctx context.Context, friendshipID string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	f, err := p.FriendshipPayload(friendshipID)
	if err != nil {
		return err
	}
	if f.Type != schema.FriendshipReceive {
		return fmt.Errorf("friendship %s is %s, not a request: %w", friendshipID, f.Type, ErrUnsupported)
	}
	return p.conn.Request(gateway.APIAcceptFriend, map[string]string{
		"my_account": self,
		"account":    f.ContactID,
	})
}
