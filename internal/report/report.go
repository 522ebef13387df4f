// Package report publishes workflow reports to writers, directories and
// HTTP endpoints.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/bbservices/bbservices/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	ErrUnknownFormat = errors.New("unknown report format")
	ErrClosed        = errors.New("publisher already closed")
)

// Encode writes report to w in the given format.
func Encode(w io.Writer, format string, report model.Report) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriterPublisher encodes reports to an io.Writer, os.Stdout by default.
type WriterPublisher struct {
	w      io.Writer
	format string
}

func NewWriterPublisher(w io.Writer, format string) (WriterPublisher, error) {
	switch format {
	case FormatJSON, FormatYAML, "":
	default:
		return WriterPublisher{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return WriterPublisher{w: w, format: format}, nil
}

func (p WriterPublisher) Publish(_ context.Context, report model.Report) error {
	if p.w == nil {
		p.w = os.Stdout
	}
	return Encode(p.w, p.format, report)
}

// DirPublisher stores every report as a new json file in a directory.
type DirPublisher struct {
	root *os.Root
	now  func() time.Time
}

func NewDirPublisher(path string) (*DirPublisher, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &DirPublisher{root: root, now: time.Now}, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName returns the name a report is stored under.
func FileName(report model.Report, at time.Time) string {
	name := unsafeName.ReplaceAllString(report.Workflow, "_")
	if name == "" {
		name = "workflow"
	}
	return "bbservices-" + name + "-" + at.Format("2006-01-02-15-04-05.000") + ".json"
}

func (p *DirPublisher) Publish(ctx context.Context, report model.Report) error {
	if p.root == nil {
		return ErrClosed
	}

	path := FileName(report, p.now())
	f, err := p.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Encode(f, FormatJSON, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("saving report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	slog.InfoContext(ctx, "report saved", "path", path, "dir", p.root.Name())
	return nil
}

func (p *DirPublisher) Close() error {
	if p.root == nil {
		return ErrClosed
	}
	err := p.root.Close()
	p.root = nil
	return err
}

// Multi publishes to every publisher, joining their errors.
type Multi []model.Publisher

func (m Multi) Publish(ctx context.Context, report model.Report) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher implementing model.PublishCloser.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if closer, ok := p.(model.PublishCloser); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
