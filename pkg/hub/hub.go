package hub

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/flisthub/pkg/config"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/oneconcern/flisthub/pkg/tool"
	"github.com/oneconcern/flisthub/pkg/tool/native"
	"github.com/oneconcern/flisthub/pkg/tool/zflist"
	"github.com/oneconcern/flisthub/pkg/workspace"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Hub manages a public repository of archives
type Hub struct {
	cfg        *config.Config
	tool       tool.Tool
	workspaces *workspace.Manager
	locks      *locker
	scheduler  *Scheduler
	m          *hubMetrics
	l          *zap.Logger
}

// New hub from a configuration and an archive tool.
//
// The public, work and upload directories are created if missing.
func New(cfg *config.Config, t tool.Tool, opts ...Option) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("an archive tool is required")
	}
	o := defaultOptions(opts)

	for _, dir := range []string{cfg.PublicDirectory, cfg.WorkDirectory, cfg.UploadDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, status.ErrResource.Wrap(err)
		}
	}

	return &Hub{
		cfg:        cfg,
		tool:       t,
		workspaces: workspace.New(cfg.WorkDirectory, workspace.WithLogger(o.l)),
		locks:      newLocker(filepath.Join(cfg.WorkDirectory, "locks"), cfg.LockTimeout, o.l),
		scheduler:  NewScheduler(cfg.Workers, WithSchedulerLogger(o.l)),
		m:          newHubMetrics(),
		l:          o.l,
	}, nil
}

// NewTool builds the archive tool selected by the configuration
func NewTool(cfg *config.Config, l *zap.Logger) tool.Tool {
	if cfg.Tool.Kind == config.ToolZflist {
		return zflist.New(cfg.Tool.Binary, zflist.WithLogger(l))
	}

	return native.New(
		native.WithLogger(l),
		native.WithBlockSize(cfg.BlockSize),
		native.WithBatchSize(cfg.ValidateBatchSize),
		native.WithWorkspaces(workspace.New(cfg.WorkDirectory, workspace.WithLogger(l))),
	)
}

// Config of this hub
func (h *Hub) Config() *config.Config {
	return h.cfg
}

// Close the hub, waiting for scheduled jobs to complete
func (h *Hub) Close() error {
	h.scheduler.Close()
	return nil
}

// Flist identifies an archive of this hub
func (h *Hub) Flist(namespace, name string) (*Flist, error) {
	return NewFlist(h.cfg.PublicDirectory, namespace, name)
}

// backend that blocks are pushed to, or checked against
func (h *Hub) backend() tool.Backend {
	b := h.cfg.Backend
	password := b.Password
	if b.Namespace != "" {
		password = b.NamespacePassword
	}
	return tool.Backend{Address: b.Address(), Password: password}
}

// place publishes a file as an archive: the content is copied next to the
// target then renamed over it. The caller holds the lock on the target.
func (h *Hub) place(src string, target *Flist) error {
	// checked right before creating anything in the namespace
	if err := target.EnsureNamespace(); err != nil {
		return err
	}

	tmp, err := h.copyAside(src, target)
	if err != nil {
		return err
	}

	if err = os.Rename(tmp, target.Target()); err != nil {
		_ = os.Remove(tmp)
		return status.ErrResource.Wrap(err)
	}
	return nil
}

// copyAside copies a file to a hidden temporary file in the namespace of target
func (h *Hub) copyAside(src string, target *Flist) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", status.ErrResource.Wrap(err)
	}
	defer func() {
		_ = in.Close()
	}()

	tmp := filepath.Join(target.NamespacePath(), fmt.Sprintf(".%s.%s.tmp", target.Name, ksuid.New().String()))
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", status.ErrResource.Wrap(err)
	}

	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if e := out.Close(); err == nil {
		err = e
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", status.ErrResource.Wrap(err)
	}
	return tmp, nil
}

// resolve a source archive: either "namespace/name" or a name in the default namespace
func (h *Hub) resolve(namespace, source string) (*Flist, error) {
	if parts := strings.Split(source, "/"); len(parts) == 2 {
		return h.Flist(parts[0], parts[1])
	}
	return h.Flist(namespace, source)
}
