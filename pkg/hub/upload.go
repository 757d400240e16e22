package hub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/flisthub/pkg/hub/status"
	"github.com/oneconcern/flisthub/pkg/tool"
	"github.com/oneconcern/flisthub/pkg/unpack"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Stage of the build pipeline
type Stage int

// Build pipeline stages
const (
	StageReceived Stage = iota
	StageExtracted
	StageBuilt
	StageParsed
	StagePlaced
	StageReleased
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageExtracted:
		return "extracted"
	case StageBuilt:
		return "built"
	case StageParsed:
		return "parsed"
	case StagePlaced:
		return "placed"
	case StageReleased:
		return "released"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// UploadResult describes a published archive
type UploadResult struct {
	Name      string           `json:"name" yaml:"name"`
	Namespace string           `json:"namespace" yaml:"namespace"`
	Stats     tool.BuildResult `json:"stats" yaml:"stats"`
}

// upload is a payload received by the hub, waiting to be processed
type upload struct {
	flist    *Flist
	filename string
	saved    string
}

func (u *upload) discard(l *zap.Logger) {
	if err := os.Remove(u.saved); err != nil && !os.IsNotExist(err) {
		l.Warn("could not remove upload", zap.String("path", u.saved), zap.Error(err))
	}
}

// Upload builds an archive from a tarball and publishes it as <namespace>/<base>.flist,
// where base is the file name without its extension.
func (h *Hub) Upload(ctx context.Context, namespace, filename string, payload io.Reader) (UploadResult, error) {
	u, err := h.receive(namespace, filename, payload)
	if err != nil {
		return UploadResult{}, err
	}
	return h.process(ctx, u)
}

// UploadAsync receives a tarball then schedules the build.
//
// The payload is fully consumed when UploadAsync returns.
func (h *Hub) UploadAsync(ctx context.Context, namespace, filename string, payload io.Reader) (<-chan JobResult, error) {
	u, err := h.receive(namespace, filename, payload)
	if err != nil {
		return nil, err
	}

	results, err := h.scheduler.Submit(ctx, func(jobCtx context.Context) (interface{}, error) {
		return h.process(jobCtx, u)
	})
	if err != nil {
		u.discard(h.l)
		return nil, err
	}
	return results, nil
}

// Wait for a scheduled job, for at most the configured build timeout.
//
// Giving up waiting doesn't interrupt the job.
func (h *Hub) Wait(ctx context.Context, results <-chan JobResult) (interface{}, error) {
	return Wait(ctx, results, h.cfg.BuildTimeout)
}

// baseName strips an allowed extension from an uploaded file name
func (h *Hub) baseName(filename string) (string, bool) {
	for _, ext := range h.cfg.AllowedExtensions {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext), true
		}
	}
	return "", false
}

// receive saves an uploaded payload under a unique name
func (h *Hub) receive(namespace, filename string, payload io.Reader) (*upload, error) {
	filename = filepath.Base(filepath.Clean("/" + filename))
	base, ok := h.baseName(filename)
	if !ok {
		return nil, status.ErrNotAllowed.Wrap(fmt.Errorf("%q: accepted extensions are %s", filename, strings.Join(h.cfg.AllowedExtensions, ", ")))
	}

	target, err := h.Flist(namespace, base)
	if err != nil {
		return nil, err
	}

	saved, err := h.save(filename, payload)
	if err != nil {
		return nil, err
	}

	h.l.Info("upload received", zap.Stringer("flist", target), zap.Stringer("stage", StageReceived))
	return &upload{flist: target, filename: filename, saved: saved}, nil
}

func (h *Hub) save(filename string, payload io.Reader) (string, error) {
	saved := filepath.Join(h.cfg.UploadDirectory, ksuid.New().String()+"-"+filename)
	fo, err := os.OpenFile(saved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", status.ErrResource.Wrap(err)
	}
	if _, err = io.Copy(fo, payload); err != nil {
		_ = fo.Close()
		_ = os.Remove(saved)
		return "", status.ErrResource.Wrap(fmt.Errorf("saving upload: %w", err))
	}
	if err = fo.Close(); err != nil {
		_ = os.Remove(saved)
		return "", status.ErrResource.Wrap(err)
	}
	return saved, nil
}

// process runs the build pipeline on a received upload
func (h *Hub) process(ctx context.Context, u *upload) (_ UploadResult, err error) {
	done := h.m.used("upload")
	defer func() {
		done(err)
	}()
	l := h.l.With(zap.Stringer("flist", u.flist))
	defer u.discard(l)

	ws, err := h.workspaces.Acquire("upload")
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}
	defer func() {
		_ = ws.Release()
		l.Debug("workspace released", zap.Stringer("stage", StageReleased))
	}()

	fi, err := os.Open(u.saved)
	if err != nil {
		return UploadResult{}, status.ErrResource.Wrap(err)
	}
	extracted, err := unpack.Extract(ctx, fi, u.filename, ws.Join("root"), unpack.WithLogger(l))
	_ = fi.Close()
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}
	l.Info("upload extracted", zap.Stringer("stage", StageExtracted), zap.Int("files", extracted.Files), zap.Int64("bytes", extracted.Bytes))

	built := ws.Join(u.flist.Name)
	result, err := h.tool.Build(ctx, tool.BuildRequest{
		RootDir: ws.Join("root"),
		Output:  built,
		Backend: h.backend(),
	})
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}
	l.Info("flist built", zap.Stringer("stage", StageBuilt))

	if !result.Success {
		return UploadResult{}, status.ErrToolFailure.Wrap(fmt.Errorf("build of %s did not succeed: %s", u.flist, strings.Join(result.Errors, "; ")))
	}
	for _, msg := range result.Errors {
		l.Warn("partial build failure", zap.String("error", msg))
	}
	h.m.built(result)
	l.Info("build result parsed", zap.Stringer("stage", StageParsed), zap.Int("entries", result.EntryCount()), zap.Int("failures", result.Failure))

	if err = h.publish(ctx, built, u.flist); err != nil {
		return UploadResult{}, err
	}
	l.Info("flist published", zap.Stringer("stage", StagePlaced))

	return UploadResult{
		Name:      u.flist.Name,
		Namespace: u.flist.Namespace,
		Stats:     result,
	}, nil
}

// publish places a file as an archive, under the lock of the target
func (h *Hub) publish(ctx context.Context, src string, target *Flist) error {
	unlock, err := h.locks.lock(ctx, target)
	if err != nil {
		return err
	}
	defer unlock()

	return h.place(src, target)
}

// UploadArchive publishes an archive which was built elsewhere.
//
// The archive is refused unless all the content it references is present on the backend.
func (h *Hub) UploadArchive(ctx context.Context, namespace, filename string, payload io.Reader) (_ UploadResult, err error) {
	done := h.m.used("upload-flist")
	defer func() {
		done(err)
	}()

	filename = filepath.Base(filepath.Clean("/" + filename))
	if !strings.HasSuffix(filename, Extension) {
		return UploadResult{}, status.ErrNotAllowed.Wrap(fmt.Errorf("%q: expected a %s file", filename, Extension))
	}

	target, err := h.Flist(namespace, filename)
	if err != nil {
		return UploadResult{}, err
	}
	l := h.l.With(zap.Stringer("flist", target))

	ws, err := h.workspaces.Acquire("upload-flist")
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}
	defer func() {
		_ = ws.Release()
	}()

	saved := ws.Join(target.Name)
	fo, err := os.OpenFile(saved, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return UploadResult{}, status.ErrResource.Wrap(err)
	}
	_, err = io.Copy(fo, payload)
	if e := fo.Close(); err == nil {
		err = e
	}
	if err != nil {
		return UploadResult{}, status.ErrResource.Wrap(err)
	}
	l.Info("archive received", zap.Stringer("stage", StageReceived))

	check, err := h.tool.Check(ctx, saved, h.backend())
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}
	h.m.checked(check)
	if check.Reason != "" {
		return UploadResult{}, status.ErrUnavailable.Wrap(fmt.Errorf("%s", check.Reason))
	}
	if !check.Complete {
		l.Warn("archive refused", zap.Int("missing", len(check.Missing)), zap.Int("checked", check.Checked))
		return UploadResult{}, status.ErrIncomplete.Wrap(fmt.Errorf("%d of %d blocks missing", len(check.Missing), check.Checked))
	}

	listing, err := h.tool.List(ctx, saved)
	if err != nil {
		return UploadResult{}, status.FromLower(err)
	}

	if err = h.publish(ctx, saved, target); err != nil {
		return UploadResult{}, err
	}
	l.Info("flist published", zap.Stringer("stage", StagePlaced))

	return UploadResult{
		Name:      target.Name,
		Namespace: target.Namespace,
		Stats: tool.BuildResult{
			Success:   true,
			Regular:   listing.Regular,
			Directory: listing.Directory,
			Symlink:   listing.Symlink,
			Special:   listing.Special,
		},
	}, nil
}
