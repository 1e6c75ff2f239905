package channel

import (
	"fmt"
	"log/slog"

	"github.com/yndnr/corslight-go/internal/eventloop"
)

// Loader runs the code of an embedded document once it has been created,
// typically by installing a dispatcher into the frame.
type Loader func(frame *Frame) error

// Embedder is an in-memory Opener: every Open creates a new embedded
// document connected to the caller through a Pipe and loads it
// asynchronously on the frame scheduler.
type Embedder struct {
	parentOrigin string
	parentSched  eventloop.Scheduler
	frameSched   eventloop.Scheduler
	load         Loader
	logger       *slog.Logger
}

// NewEmbedder returns an Opener embedding documents into a parent at
// parentOrigin.
func NewEmbedder(parentOrigin string, parentSched, frameSched eventloop.Scheduler, load Loader, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		parentOrigin: parentOrigin,
		parentSched:  parentSched,
		frameSched:   frameSched,
		load:         load,
		logger:       logger,
	}
}

// Open implements Opener.
func (e *Embedder) Open(target string, h Handler) (Port, error) {
	frameOrigin, err := OriginOf(target)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", target, err)
	}

	parent, child := Pipe(e.parentOrigin, e.parentSched, frameOrigin, e.frameSched)
	parent.Listen(h)

	frame := NewFrame(frameOrigin, child)
	if e.load != nil {
		e.frameSched.Post(func() {
			if err := e.load(frame); err != nil {
				e.logger.Error("embedded document failed to load",
					"origin", frameOrigin,
					"error", err)
			}
		})
	}
	return parent, nil
}
