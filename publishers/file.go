package publishers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/scoboslor/player2/models"
)

var ErrRelativePath = errors.New("file path must be absolute")

type FilePublisher struct {
	fd     *os.File
	format string
}

type FilePublisherOptions struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// NewFilePublisher opens opt.Path for writing. Paths ending in .pipe are
// created as named pipes.
func NewFilePublisher(opt *FilePublisherOptions) (*FilePublisher, error) {
	if !filepath.IsAbs(opt.Path) {
		return nil, fmt.Errorf("%w: %q", ErrRelativePath, opt.Path)
	}
	var fd *os.File
	path := filepath.Clean(opt.Path)
	stat, err := os.Stat(path)
	if err == nil {
		if stat.Mode().Type() == os.ModeNamedPipe {
			fd, err = os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
		} else {
			fd, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
		}
	} else {
		if strings.HasSuffix(path, ".pipe") {
			err = syscall.Mkfifo(path, 0o644)
			if err != nil {
				return nil, fmt.Errorf("mkfifo %s: %w", path, err)
			}
			fd, err = os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
		} else {
			fd, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		}
	}
	if err != nil {
		return nil, err
	}
	format := opt.Format
	if format == "" {
		format = "%s\n"
	}
	return &FilePublisher{
		fd:     fd,
		format: format,
	}, nil
}

func (*FilePublisher) ID() string {
	return FilePublisherID
}

func (p *FilePublisher) Publish(e *models.Event) error {
	txt, ok := Text(e)
	if !ok {
		return nil
	}
	_, err := fmt.Fprintf(p.fd, p.format, txt)
	return err
}

func (p *FilePublisher) Exit() error {
	return p.fd.Close()
}
