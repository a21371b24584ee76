package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
)

// runState carries data between the tasks of one run: the raw object
// key per input, the extracted file keys per input, and the harmonised
// outputs. Task nodes only ever touch their own input's slots, but pool
// nodes read across inputs, so access stays locked.
type runState struct {
	mu      sync.Mutex
	raw     map[string]string
	files   map[string][]string
	outputs map[string][]string
}

func newRunState() *runState {
	return &runState{
		raw:     make(map[string]string),
		files:   make(map[string][]string),
		outputs: make(map[string][]string),
	}
}

func (s *runState) setRaw(input, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[input] = key
}

func (s *runState) rawKey(input string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.raw[input]
	return key, ok
}

func (s *runState) setFiles(input string, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[input] = keys
}

func (s *runState) filesFor(input string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files[input]...)
}

func (s *runState) addOutput(input, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[input] = append(s.outputs[input], key)
}

func (s *runState) countFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, keys := range s.files {
		total += len(keys)
	}
	return total
}

func (s *runState) countOutputs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, keys := range s.outputs {
		total += len(keys)
	}
	return total
}

func (e *Engine) runTask(ctx context.Context, run domain.Run, node *domain.TaskNode, st *runState) error {
	switch node.Type {
	case domain.TaskTypeRetrieve:
		return e.runRetrieve(ctx, run, node)
	case domain.TaskTypeDownload:
		return e.runDownload(ctx, run, node, st)
	case domain.TaskTypeExtract:
		return e.runExtract(ctx, run, node, st)
	case domain.TaskTypeProcess:
		return e.runProcess(ctx, run, node, st)
	case domain.TaskTypePool:
		return e.runPool(node, st)
	}
	return fmt.Errorf("%w: unknown task type %q", domain.ErrInternalInconsistency, node.Type)
}

func (e *Engine) runRetrieve(ctx context.Context, run domain.Run, node *domain.TaskNode) error {
	urls, objects := ingest.SourceURLs(run.Config.Source)
	var kind string
	switch {
	case len(urls) > 0 && len(objects) > 0:
		kind = "mixed"
	case len(urls) > 0:
		kind = "url"
	default:
		kind = "user_upload"
	}
	if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionRetrievalTypeIdentified, kind); err != nil {
		return err
	}
	node.Logs = append(node.Logs, fmt.Sprintf("source names %d url(s) and %d stored object(s)", len(urls), len(objects)))
	return nil
}

func (e *Engine) runDownload(ctx context.Context, run domain.Run, node *domain.TaskNode, st *runState) error {
	input, ok := taskArgument(node, ArgInput)
	if !ok {
		return fmt.Errorf("%w: download task without input argument", domain.ErrInternalInconsistency)
	}

	if rawURL, ok := taskArgument(node, ArgURL); ok {
		key, meta, err := e.fetcher.FetchURL(ctx, run.ID, rawURL)
		if err != nil {
			return err
		}
		if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionURLRetrieved, rawURL); err != nil {
			return err
		}
		if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionFileCopied, key); err != nil {
			return err
		}
		st.setRaw(input, key)
		node.Logs = append(node.Logs, fmt.Sprintf("downloaded %s (%s)", meta.Name, meta.Description))
		return nil
	}

	object, ok := taskArgument(node, ArgObject)
	if !ok {
		return fmt.Errorf("%w: download task without url or object argument", domain.ErrInternalInconsistency)
	}
	// Uploaded objects are already in the raw bucket; verify they read.
	if _, err := e.fetcher.Open(ctx, object); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCall, err)
	}
	if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionFileCopied, object); err != nil {
		return err
	}
	st.setRaw(input, object)
	return nil
}

func (e *Engine) runExtract(ctx context.Context, run domain.Run, node *domain.TaskNode, st *runState) error {
	input, ok := taskArgument(node, ArgInput)
	if !ok {
		return fmt.Errorf("%w: extract task without input argument", domain.ErrInternalInconsistency)
	}
	key, ok := st.rawKey(input)
	if !ok {
		return fmt.Errorf("%w: no raw object recorded for input %q", domain.ErrInternalInconsistency, input)
	}

	data, err := e.fetcher.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCall, err)
	}

	archive := ingest.DetectArchive(key, data)
	if archive == ingest.ArchiveNone {
		if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionExtractionTypeIdentified, "none"); err != nil {
			return err
		}
		st.setFiles(input, []string{key})
		return nil
	}

	files, err := ingest.ExtractArchive(key, data)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCall, err)
	}
	keys, err := e.fetcher.StoreFiles(ctx, run.ID, files)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCall, err)
	}
	if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionExtractionTypeIdentified, archive); err != nil {
		return err
	}
	st.setFiles(input, keys)
	node.Logs = append(node.Logs, fmt.Sprintf("extracted %d file(s) from %s archive", len(keys), archive))
	return nil
}

func (e *Engine) runProcess(ctx context.Context, run domain.Run, node *domain.TaskNode, st *runState) error {
	input, ok := taskArgument(node, ArgInput)
	if !ok {
		return fmt.Errorf("%w: process task without input argument", domain.ErrInternalInconsistency)
	}
	candidates, err := e.registry.Candidates(ctx)
	if err != nil {
		return err
	}

	for _, key := range st.filesFor(input) {
		data, err := e.fetcher.Open(ctx, key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExternalCall, err)
		}
		table, format, err := ingest.ReadTable(bytes.NewReader(data), key)
		if err != nil {
			return err
		}
		if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionFileFormatIdentified, format); err != nil {
			return err
		}

		schema, matched := schemas.IdentifyTarget(table.Columns, candidates)
		content := fmt.Sprintf("%s (matched %d column(s))", schema.Name, matched)
		if _, err := e.ledger.Record(ctx, run.ID, node.ID, domain.DecisionSchemaIdentified, content); err != nil {
			return err
		}

		aligned, err := e.aligner.Align(ctx, run.ID, node.ID, table, schema, key)
		if err != nil {
			return err
		}
		encoded, err := aligned.EncodeCSV()
		if err != nil {
			return err
		}
		outKey := run.ID + "/" + ingest.FileStem(key) + ".csv"
		if err := e.store.Put(ctx, e.buckets.BucketHarmonise, outKey, bytes.NewReader(encoded), int64(len(encoded)), "text/csv"); err != nil {
			return fmt.Errorf("%w: store %s: %v", domain.ErrExternalCall, outKey, err)
		}
		st.addOutput(input, outKey)
		node.Logs = append(node.Logs, "harmonised "+key+" as "+outKey)
	}
	return nil
}

func (e *Engine) runPool(node *domain.TaskNode, st *runState) error {
	if st.countOutputs() > 0 {
		node.Logs = append(node.Logs, fmt.Sprintf("pooled %d harmonised table(s)", st.countOutputs()))
		return nil
	}
	node.Logs = append(node.Logs, fmt.Sprintf("pooled %d file(s)", st.countFiles()))
	return nil
}
