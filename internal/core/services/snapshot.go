package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/stratalabs/strata/internal/core/domain"
	"github.com/stratalabs/strata/internal/core/ports/driven"
	"github.com/stratalabs/strata/internal/core/ports/driving"
)

// Ensure SnapshotService implements the interface.
var _ driving.SnapshotService = (*SnapshotService)(nil)

// Archive member names. Database dumps live under db/, the workspace
// and storage trees under data/.
const (
	memberJobs      = "db/jobs.json"
	memberDocuments = "db/documents.json"
	memberRecords   = "db/records.json"
	memberQueue     = "db/queue.json"
	memberBlobDir   = "db/blobs"
	memberWorkspace = "data/workspace"
	memberStorage   = "data/storage"
)

// SnapshotService creates and restores project snapshots: a tar.gz
// archive of the project database plus, unless database-only, the
// workspace and storage trees. Restore keeps the prior state in a
// rollback directory until it completes, so a crash mid-restore is
// recoverable.
type SnapshotService struct {
	project     *domain.Project
	registry    driven.JobRegistry
	docStore    driven.JobDocumentStore
	recordStore driven.RecordStore
	queueStore  driven.QueueStore
	blobStore   driven.BlobStore
	lockStore   driven.LockStore
	pulseStore  driven.PulseStore
	configStore driven.ConfigStore
	projectLog  *ProjectLog
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(
	project *domain.Project,
	registry driven.JobRegistry,
	docStore driven.JobDocumentStore,
	recordStore driven.RecordStore,
	queueStore driven.QueueStore,
	blobStore driven.BlobStore,
	lockStore driven.LockStore,
	pulseStore driven.PulseStore,
	configStore driven.ConfigStore,
	projectLog *ProjectLog,
) *SnapshotService {
	return &SnapshotService{
		project:     project,
		registry:    registry,
		docStore:    docStore,
		recordStore: recordStore,
		queueStore:  queueStore,
		blobStore:   blobStore,
		lockStore:   lockStore,
		pulseStore:  pulseStore,
		configStore: configStore,
		projectLog:  projectLog,
	}
}

// online returns domain.ErrOffline when the project has no store.
func (s *SnapshotService) online() error {
	if s.registry == nil {
		return domain.ErrOffline
	}
	return nil
}

// projectState is an in-memory dump of everything the stores hold.
type projectState struct {
	Jobs      []domain.Job              `json:"jobs"`
	Documents map[string]map[string]any `json:"documents"`
	Records   []domain.Record           `json:"records"`
	Queue     []domain.QueueEntry       `json:"queue"`
	Blobs     map[string][]byte         `json:"-"`
}

// Create writes a snapshot archive to path.
func (s *SnapshotService) Create(ctx context.Context, path string, databaseOnly, overwrite bool) (*domain.SnapshotManifest, error) {
	if err := s.online(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: snapshot path is empty", domain.ErrInvalidInput)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, path)
		}
	}

	state, err := s.collectState(ctx)
	if err != nil {
		return nil, err
	}

	manifest := &domain.SnapshotManifest{
		ProjectID:     s.project.ID,
		SchemaVersion: s.project.SchemaVersion.String(),
		DatabaseOnly:  databaseOnly,
		CreatedAt:     time.Now().UTC(),
		Jobs:          len(state.Jobs),
		Records:       len(state.Records),
	}

	if err := s.writeArchive(path, manifest, state); err != nil {
		return nil, err
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "snapshot",
		"Created snapshot %s (%d jobs, %d records)", path, manifest.Jobs, manifest.Records)
	return manifest, nil
}

// writeArchive streams the snapshot to path through a pending file, so
// a failed write never leaves a truncated archive behind.
func (s *SnapshotService) writeArchive(path string, manifest *domain.SnapshotManifest, state *projectState) error {
	pending, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after a successful replace

	gz := gzip.NewWriter(pending)
	tw := tar.NewWriter(gz)

	if err := s.writeMembers(tw, manifest, state); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotService) writeMembers(tw *tar.Writer, manifest *domain.SnapshotManifest, state *projectState) error {
	if err := writeJSONMember(tw, domain.SnapshotManifestName, manifest); err != nil {
		return err
	}
	if err := writeJSONMember(tw, memberJobs, state.Jobs); err != nil {
		return err
	}
	if err := writeJSONMember(tw, memberDocuments, state.Documents); err != nil {
		return err
	}
	if err := writeJSONMember(tw, memberRecords, state.Records); err != nil {
		return err
	}
	if err := writeJSONMember(tw, memberQueue, state.Queue); err != nil {
		return err
	}
	for digest, data := range state.Blobs {
		if err := writeRawMember(tw, path.Join(memberBlobDir, digest), data); err != nil {
			return err
		}
	}

	if manifest.DatabaseOnly {
		return nil
	}
	if err := writeTree(tw, s.project.WorkspaceDir, memberWorkspace); err != nil {
		return fmt.Errorf("archiving workspace: %w", err)
	}
	if err := writeTree(tw, s.project.StorageDir, memberStorage); err != nil {
		return fmt.Errorf("archiving storage: %w", err)
	}
	return nil
}

// Restore replaces the current project state with the archive.
func (s *SnapshotService) Restore(ctx context.Context, path string) error {
	if err := s.online(); err != nil {
		return err
	}

	// 1. Refuse while the project is in use or a prior restore is
	// unresolved.
	instances, err := s.registry.ListAllInstances(ctx)
	if err != nil {
		return err
	}
	if len(instances) > 0 {
		return fmt.Errorf("%w: close open jobs before restoring", domain.ErrJobOpen)
	}
	counts, err := s.queueStore.Counts(ctx)
	if err != nil {
		return err
	}
	if counts.Queued > 0 || counts.Active > 0 {
		return fmt.Errorf("%w: drain the queue before restoring (%d queued, %d active)",
			domain.ErrInvalidInput, counts.Queued, counts.Active)
	}
	rollbackDir := s.rollbackDir()
	if _, err := os.Stat(rollbackDir); err == nil {
		return fmt.Errorf("%w: recover or discard %s first", domain.ErrRollbackExists, rollbackDir)
	}

	// 2. Read and validate the archive before touching anything.
	manifest, snapState, err := readArchiveState(path)
	if err != nil {
		return err
	}
	if manifest.ProjectID != s.project.ID {
		return fmt.Errorf("%w: snapshot of project %q cannot restore into %q",
			domain.ErrInvalidInput, manifest.ProjectID, s.project.ID)
	}
	snapSchema, err := domain.ParseSchemaVersion(manifest.SchemaVersion)
	if err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}
	current := domain.MustSchemaVersion(domain.SchemaVersionCurrent)
	if snapSchema.Compare(current) > 0 {
		return fmt.Errorf("%w: snapshot is at %s, this build supports %s",
			domain.ErrSchemaVersion, manifest.SchemaVersion, domain.SchemaVersionCurrent)
	}

	// 3. Move the current state into the rollback directory.
	priorState, err := s.collectState(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(rollbackDir, 0o755); err != nil {
		return fmt.Errorf("creating rollback directory: %w", err)
	}
	if err := dumpStateDir(rollbackDir, priorState); err != nil {
		return err
	}
	if !manifest.DatabaseOnly {
		if err := moveTreeInto(s.project.WorkspaceDir, filepath.Join(rollbackDir, "workspace")); err != nil {
			return err
		}
		if err := moveTreeInto(s.project.StorageDir, filepath.Join(rollbackDir, "storage")); err != nil {
			return err
		}
	}

	// 4. From here on the rollback directory is the safety net. Wipe
	// and reload; any failure leaves it in place for RecoverRollback.
	if err := s.wipeState(ctx, priorState); err != nil {
		return err
	}
	if err := s.loadState(ctx, snapState); err != nil {
		return err
	}
	if !manifest.DatabaseOnly {
		if err := s.extractTrees(path); err != nil {
			return err
		}
	}

	// 5. An older snapshot leaves the project needing migration.
	if snapSchema.Compare(current) < 0 && s.configStore != nil {
		if err := s.configStore.Set("project.schema_version", manifest.SchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
		s.project.SchemaVersion = snapSchema
	}

	if err := os.RemoveAll(rollbackDir); err != nil {
		return fmt.Errorf("removing rollback backup: %w", err)
	}

	s.projectLog.Record(ctx, domain.LogLevelInfo, "snapshot",
		"Restored snapshot %s (%d jobs, %d records)", path, manifest.Jobs, manifest.Records)
	return nil
}

// HasRollback reports whether a rollback backup exists.
func (s *SnapshotService) HasRollback() (bool, error) {
	_, err := os.Stat(s.rollbackDir())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecoverRollback restores the project state from the rollback backup
// left by a failed restore.
func (s *SnapshotService) RecoverRollback(ctx context.Context) error {
	if err := s.online(); err != nil {
		return err
	}
	has, err := s.HasRollback()
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: no rollback backup", domain.ErrNotFound)
	}
	rollbackDir := s.rollbackDir()

	prior, err := readStateDir(rollbackDir)
	if err != nil {
		return err
	}

	// Whatever the failed restore left behind goes away first.
	partial, err := s.collectState(ctx)
	if err != nil {
		return err
	}
	if err := s.wipeState(ctx, partial); err != nil {
		return err
	}
	if err := s.loadState(ctx, prior); err != nil {
		return err
	}

	if err := moveTreeBack(filepath.Join(rollbackDir, "workspace"), s.project.WorkspaceDir); err != nil {
		return err
	}
	if err := moveTreeBack(filepath.Join(rollbackDir, "storage"), s.project.StorageDir); err != nil {
		return err
	}

	if err := os.RemoveAll(rollbackDir); err != nil {
		return fmt.Errorf("removing rollback backup: %w", err)
	}

	s.projectLog.Record(ctx, domain.LogLevelWarning, "snapshot",
		"Recovered project state from rollback backup (%d jobs)", len(prior.Jobs))
	return nil
}

// DiscardRollback deletes the rollback backup.
func (s *SnapshotService) DiscardRollback(ctx context.Context) error {
	has, err := s.HasRollback()
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: no rollback backup", domain.ErrNotFound)
	}
	if err := os.RemoveAll(s.rollbackDir()); err != nil {
		return fmt.Errorf("removing rollback backup: %w", err)
	}
	s.projectLog.Record(ctx, domain.LogLevelWarning, "snapshot", "Discarded rollback backup")
	return nil
}

func (s *SnapshotService) rollbackDir() string {
	return filepath.Join(s.project.Root, domain.RollbackDirName)
}

// collectState dumps everything the stores hold. Blobs are collected
// by walking record payload references, so unreferenced blobs are left
// behind.
func (s *SnapshotService) collectState(ctx context.Context) (*projectState, error) {
	jobs, err := s.registry.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	documents := make(map[string]map[string]any)
	for i := range jobs {
		doc, err := s.docStore.GetDocument(ctx, jobs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("reading document of job %s: %w", shortID(jobs[i].ID), err)
		}
		if len(doc) > 0 {
			documents[jobs[i].ID] = doc
		}
	}

	records, err := s.recordStore.List(ctx)
	if err != nil {
		return nil, err
	}

	blobs := make(map[string][]byte)
	for i := range records {
		rec := &records[i]
		if !rec.HasPayload() {
			continue
		}
		if _, ok := blobs[rec.PayloadDigest]; ok {
			continue
		}
		data, err := s.readBlob(ctx, rec.PayloadDigest)
		if err != nil {
			return nil, fmt.Errorf("reading payload of record %s: %w", rec.ID, err)
		}
		blobs[rec.PayloadDigest] = data
	}

	queue, err := s.queueStore.List(ctx, "")
	if err != nil {
		return nil, err
	}

	return &projectState{
		Jobs:      jobs,
		Documents: documents,
		Records:   records,
		Queue:     queue,
		Blobs:     blobs,
	}, nil
}

func (s *SnapshotService) readBlob(ctx context.Context, digest string) ([]byte, error) {
	rc, err := s.blobStore.Open(ctx, digest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// wipeState removes everything a collected state references, plus any
// held locks and stale pulses.
func (s *SnapshotService) wipeState(ctx context.Context, state *projectState) error {
	for i := range state.Jobs {
		jobID := state.Jobs[i].ID
		if err := s.docStore.DeleteDocument(ctx, jobID); err != nil {
			return fmt.Errorf("deleting document of job %s: %w", shortID(jobID), err)
		}
		if err := s.registry.DeleteJob(ctx, jobID); err != nil {
			return fmt.Errorf("deleting job %s: %w", shortID(jobID), err)
		}
	}
	for i := range state.Records {
		if err := s.recordStore.Delete(ctx, state.Records[i].ID); err != nil {
			return fmt.Errorf("deleting record %s: %w", state.Records[i].ID, err)
		}
	}
	for digest := range state.Blobs {
		if err := s.blobStore.Delete(ctx, digest); err != nil {
			return fmt.Errorf("deleting blob %s: %w", digest, err)
		}
	}
	for _, st := range []domain.QueueState{
		domain.QueueStateQueued, domain.QueueStateActive,
		domain.QueueStateCompleted, domain.QueueStateAborted,
	} {
		if _, err := s.queueStore.ClearState(ctx, st); err != nil {
			return fmt.Errorf("clearing queue: %w", err)
		}
	}

	if s.lockStore != nil {
		held, err := s.lockStore.ListHeld(ctx)
		if err != nil {
			return err
		}
		for _, lock := range held {
			if err := s.lockStore.ForceRelease(ctx, lock.Name); err != nil {
				return fmt.Errorf("releasing lock %s: %w", lock.Name, err)
			}
		}
	}
	if s.pulseStore != nil {
		pulses, err := s.pulseStore.List(ctx)
		if err != nil {
			return err
		}
		for _, pulse := range pulses {
			if err := s.pulseStore.Remove(ctx, pulse.InstanceID); err != nil {
				return fmt.Errorf("removing pulse %s: %w", pulse.InstanceID, err)
			}
		}
	}
	return nil
}

// loadState writes a collected state back into the stores. Record and
// queue entry IDs are preserved.
func (s *SnapshotService) loadState(ctx context.Context, state *projectState) error {
	for digest, data := range state.Blobs {
		stored, err := s.blobStore.Put(ctx, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("storing blob: %w", err)
		}
		if stored != digest {
			return fmt.Errorf("blob digest mismatch: archive says %s, stored as %s", digest, stored)
		}
	}
	for i := range state.Jobs {
		job := state.Jobs[i]
		if err := s.registry.SaveJob(ctx, &job); err != nil {
			return fmt.Errorf("restoring job %s: %w", shortID(job.ID), err)
		}
	}
	for jobID, doc := range state.Documents {
		for key, value := range doc {
			if err := s.docStore.SetValue(ctx, jobID, key, value); err != nil {
				return fmt.Errorf("restoring document of job %s: %w", shortID(jobID), err)
			}
		}
	}
	for i := range state.Records {
		rec := state.Records[i]
		if err := s.recordStore.Insert(ctx, &rec); err != nil {
			return fmt.Errorf("restoring record %s: %w", rec.ID, err)
		}
	}
	for i := range state.Queue {
		entry := state.Queue[i]
		if err := s.queueStore.Put(ctx, &entry); err != nil {
			return fmt.Errorf("restoring queue entry %d: %w", entry.ID, err)
		}
	}
	return nil
}

// extractTrees unpacks the data/ members of the archive into the
// project's workspace and storage directories.
func (s *SnapshotService) extractTrees(archivePath string) error {
	roots := map[string]string{
		memberWorkspace: s.project.WorkspaceDir,
		memberStorage:   s.project.StorageDir,
	}
	for _, dir := range roots {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return iterateArchive(archivePath, func(hdr *tar.Header, r io.Reader) error {
		prefix, root := "", ""
		for p, rt := range roots {
			if hdr.Name == p || strings.HasPrefix(hdr.Name, p+"/") {
				prefix, root = p, rt
				break
			}
		}
		if root == "" {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(hdr.Name, prefix), "/")
		target, err := safeJoin(root, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0o755)
		case tar.TypeSymlink:
			return os.Symlink(hdr.Linkname, target)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, r); err != nil { //nolint:gosec // size bounded by the archive we wrote
				out.Close() //nolint:errcheck,gosec // the copy error wins
				return err
			}
			return out.Close()
		default:
			return nil
		}
	})
}

// readArchiveState reads the manifest and database dumps out of a
// snapshot archive without touching the filesystem.
func readArchiveState(archivePath string) (*domain.SnapshotManifest, *projectState, error) {
	var manifest *domain.SnapshotManifest
	state := &projectState{
		Documents: make(map[string]map[string]any),
		Blobs:     make(map[string][]byte),
	}

	err := iterateArchive(archivePath, func(hdr *tar.Header, r io.Reader) error {
		switch {
		case hdr.Name == domain.SnapshotManifestName:
			manifest = &domain.SnapshotManifest{}
			return decodeJSONMember(r, manifest)
		case hdr.Name == memberJobs:
			return decodeJSONMember(r, &state.Jobs)
		case hdr.Name == memberDocuments:
			return decodeJSONMember(r, &state.Documents)
		case hdr.Name == memberRecords:
			return decodeJSONMember(r, &state.Records)
		case hdr.Name == memberQueue:
			return decodeJSONMember(r, &state.Queue)
		case strings.HasPrefix(hdr.Name, memberBlobDir+"/"):
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			state.Blobs[path.Base(hdr.Name)] = data
			return nil
		default:
			return nil
		}
	})
	if err != nil {
		return nil, nil, err
	}
	if manifest == nil {
		return nil, nil, fmt.Errorf("%w: %s is not a snapshot archive (missing %s)",
			domain.ErrInvalidInput, archivePath, domain.SnapshotManifestName)
	}
	return manifest, state, nil
}

// iterateArchive opens a snapshot archive and calls fn for every member.
func iterateArchive(archivePath string, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s is not a gzip archive: %v", domain.ErrInvalidInput, archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

func writeJSONMember(tw *tar.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return writeRawMember(tw, name, data)
}

func writeRawMember(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func decodeJSONMember(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeTree archives a directory tree under the given member prefix.
// A missing tree is skipped, matching a freshly initialised project.
func writeTree(tw *tar.Writer, root, prefix string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = path.Join(prefix, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return tw.WriteHeader(&tar.Header{
				Name:     name + "/",
				Mode:     0o755,
				Typeflag: tar.TypeDir,
				ModTime:  info.ModTime(),
			})
		case d.Type()&fs.ModeSymlink != 0:
			linkDst, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return tw.WriteHeader(&tar.Header{
				Name:     name,
				Typeflag: tar.TypeSymlink,
				Linkname: linkDst,
				ModTime:  info.ModTime(),
			})
		default:
			if err := tw.WriteHeader(&tar.Header{
				Name:    name,
				Mode:    int64(info.Mode().Perm()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			}); err != nil {
				return err
			}
			in, err := os.Open(p)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, in); err != nil {
				in.Close() //nolint:errcheck,gosec // the copy error wins
				return err
			}
			return in.Close()
		}
	})
}

// dumpStateDir writes the database dumps of a state into dir.
func dumpStateDir(dir string, state *projectState) error {
	files := map[string]any{
		"jobs.json":      state.Jobs,
		"documents.json": state.Documents,
		"records.json":   state.Records,
		"queue.json":     state.Queue,
	}
	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding rollback %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil { //nolint:gosec // backup data, project-local
			return fmt.Errorf("writing rollback %s: %w", name, err)
		}
	}

	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return fmt.Errorf("creating rollback blob directory: %w", err)
	}
	for digest, data := range state.Blobs {
		if err := os.WriteFile(filepath.Join(blobDir, digest), data, 0o644); err != nil { //nolint:gosec // backup data, project-local
			return fmt.Errorf("writing rollback blob: %w", err)
		}
	}
	return nil
}

// readStateDir loads the database dumps a failed restore left in dir.
func readStateDir(dir string) (*projectState, error) {
	state := &projectState{
		Documents: make(map[string]map[string]any),
		Blobs:     make(map[string][]byte),
	}
	files := map[string]any{
		"jobs.json":      &state.Jobs,
		"documents.json": &state.Documents,
		"records.json":   &state.Records,
		"queue.json":     &state.Queue,
	}
	for name, v := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading rollback %s: %w", name, err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("parsing rollback %s: %w", name, err)
		}
	}

	blobDir := filepath.Join(dir, "blobs")
	entries, err := os.ReadDir(blobDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading rollback blobs: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(blobDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading rollback blob: %w", err)
		}
		state.Blobs[entry.Name()] = data
	}
	return state, nil
}

// moveTreeInto renames a live tree into the rollback directory. A
// missing tree is recorded as absent by simply not appearing there.
func moveTreeInto(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s aside: %w", src, err)
	}
	return nil
}

// moveTreeBack restores a tree from the rollback directory, replacing
// whatever the failed restore managed to extract.
func moveTreeBack(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clearing %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s back: %w", src, err)
	}
	return nil
}

// safeJoin joins an archive member path onto root, rejecting escapes.
func safeJoin(root, rel string) (string, error) {
	if rel == "" || rel == "." {
		return root, nil
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: archive member %q escapes the project", domain.ErrInvalidInput, rel)
	}
	return filepath.Join(root, clean), nil
}
