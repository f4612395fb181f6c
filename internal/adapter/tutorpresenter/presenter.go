package tutorpresenter

import (
	"encoding/base64"
	"strings"

	"github.com/park285/cheese-chess-tutor/pkg/tutordto"
)

// Presenter delivers formatted text followed by the board image.
type Presenter struct {
	sendMessage func(room, message string) error
	sendImage   func(room, imageBase64 string) error
}

func NewPresenter(sendMessage func(room, message string) error, sendImage func(room, imageBase64 string) error) *Presenter {
	return &Presenter{
		sendMessage: sendMessage,
		sendImage:   sendImage,
	}
}

func (p *Presenter) Text(room, message string) error {
	if p == nil || p.sendMessage == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}

func (p *Presenter) Board(room, message string, state *tutordto.SessionState) error {
	if err := p.Text(room, message); err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	return p.image(room, state.BoardImage)
}

// Advice sends the ranked moves and the board with the best move drawn.
func (p *Presenter) Advice(room, message string, advice *tutordto.Advice) error {
	if err := p.Text(room, message); err != nil {
		return err
	}
	if advice == nil {
		return nil
	}
	return p.image(room, advice.BoardImage)
}

func (p *Presenter) image(room string, png []byte) error {
	if p == nil || p.sendImage == nil || len(png) == 0 {
		return nil
	}
	return p.sendImage(room, base64.StdEncoding.EncodeToString(png))
}
