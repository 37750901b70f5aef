package puppet

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/parser"
	"github.com/matheus3301/macbridge/internal/schema"
)

// FileRef points at a media attachment the gateway hosts.
type FileRef struct {
	URL      string
	Name     string
	VoiceLen int
}

// MessagePayload returns a recently seen message by id. Messages age
// out of the ephemeral store; a miss is ErrNotFound, not a sync.
func (p *Puppet) MessagePayload(id string) (*schema.MessagePayload, error) {
	m := p.recent.Get(id)
	if m == nil {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return m, nil
}

// SendText sends a text to a contact or room. Mentions fan out through
// the room at-message endpoint.
func (p *Puppet) SendText(ctx context.Context, conversationID, text string, mentionIDs ...string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	if len(mentionIDs) > 0 {
		return p.conn.Request(gateway.APISendAtMessage, map[string]any{
			"my_account": self,
			"g_number":   conversationID,
			"content":    text,
			"at_list":    mentionIDs,
		})
	}
	return p.conn.Request(gateway.APISendMessage, map[string]any{
		"my_account":   self,
		"to_account":   conversationID,
		"content":      text,
		"content_type": schema.MessageTypeText,
	})
}

// SendURL sends a link card.
func (p *Puppet) SendURL(ctx context.Context, conversationID string, link *schema.URLLinkPayload) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	return p.conn.Request(gateway.APISendURLLink, map[string]string{
		"my_account":  self,
		"to_account":  conversationID,
		"url":         link.URL,
		"title":       link.Title,
		"description": link.Description,
		"thumb":       link.ThumbURL,
	})
}

// SendFile sends a hosted file, choosing the media endpoint by
// extension: silk audio goes out as voice, known image and video
// formats as their native types, everything else as an attachment.
func (p *Puppet) SendFile(ctx context.Context, conversationID string, file *FileRef) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	data := map[string]any{
		"my_account": self,
		"to_account": conversationID,
		"url":        file.URL,
		"file_name":  file.Name,
	}
	switch ext := strings.ToLower(path.Ext(file.Name)); ext {
	case ".silk":
		data["voice_len"] = file.VoiceLen
		return p.conn.Request(gateway.APISendVoice, data)
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
		return p.conn.Request(gateway.APISendImage, data)
	case ".mp4", ".mov", ".avi":
		return p.conn.Request(gateway.APISendVideo, data)
	default:
		return p.conn.Request(gateway.APISendFile, data)
	}
}

// SendContactCard shares a contact.
func (p *Puppet) SendContactCard(ctx context.Context, conversationID, contactID string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	return p.conn.Request(gateway.APISendContactCard, map[string]string{
		"my_account": self,
		"to_account": conversationID,
		"account":    contactID,
	})
}

// Forward re-sends a recently seen message to another conversation,
// re-dereferencing media through the stored payload.
func (p *Puppet) Forward(ctx context.Context, conversationID, messageID string) error {
	m, err := p.MessagePayload(messageID)
	if err != nil {
		return err
	}
	switch m.ContentType {
	case schema.MessageTypeText:
		return p.SendText(ctx, conversationID, m.Content)
	case schema.MessageTypeURLLink:
		link := parser.MessageURL(m)
		if link == nil {
			return fmt.Errorf("message %s has no link card: %w", messageID, ErrNotFound)
		}
		return p.SendURL(ctx, conversationID, link)
	case schema.MessageTypeImage, schema.MessageTypeVideo, schema.MessageTypeVoice, schema.MessageTypeFile, schema.MessageTypeGif:
		ref, err := p.MessageFile(messageID)
		if err != nil {
			return err
		}
		return p.SendFile(ctx, conversationID, ref)
	default:
		return fmt.Errorf("forward of %s message: %w", m.ContentType, ErrUnsupported)
	}
}

// MessageURL returns the link card of a url message.
func (p *Puppet) MessageURL(id string) (*schema.URLLinkPayload, error) {
	m, err := p.MessagePayload(id)
	if err != nil {
		return nil, err
	}
	link := parser.MessageURL(m)
	if link == nil {
		return nil, fmt.Errorf("message %s has no link card: %w", id, ErrNotFound)
	}
	return link, nil
}

// MessageFile returns the media reference of an attachment message.
// Media content is a gateway-hosted url.
func (p *Puppet) MessageFile(id string) (*FileRef, error) {
	m, err := p.MessagePayload(id)
	if err != nil {
		return nil, err
	}
	switch m.ContentType {
	case schema.MessageTypeImage, schema.MessageTypeVideo, schema.MessageTypeVoice, schema.MessageTypeFile, schema.MessageTypeGif:
	default:
		return nil, fmt.Errorf("message %s carries no file: %w", id, ErrNotFound)
	}
	name := m.FileName
	if name == "" {
		name = path.Base(m.Content)
	}
	return &FileRef{URL: m.Content, Name: name, VoiceLen: m.VoiceLen}, nil
}

// Ding echoes data back as a dong event, the liveness probe of the
// caller surface.
func (p *Puppet) Ding(data string) {
	p.emit(bus.KindDong, bus.DongEvent{Data: data})
}
