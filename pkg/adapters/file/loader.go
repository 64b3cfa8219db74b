// Package file loads dialog flows from the filesystem.
//
// Flows live in <root>/<botID>/flows as *.flow.json or *.flow.yaml documents,
// possibly nested in folders. A flow without a name is named after its path
// relative to the flows directory, always with the .flow.json suffix, which is
// how transitions reference it.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/lyoneil/Botpress/pkg/domain"
)

var suffixes = []string{".flow.json", ".flow.yaml", ".flow.yml"}

// Loader implements ports.FlowLoader over a directory tree.
type Loader struct {
	root      string
	singleBot bool
}

type Option func(*Loader)

// WithSingleBot reads flows from the root directory for every bot id.
func WithSingleBot() Option {
	return func(l *Loader) {
		l.singleBot = true
	}
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{root: dir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) flowsDir(botID string) string {
	if l.singleBot {
		return l.root
	}
	return filepath.Join(l.root, botID, "flows")
}

// LoadFlows reads and decodes every flow document of the bot, sorted by name.
func (l *Loader) LoadFlows(ctx context.Context, botID string) ([]domain.Flow, error) {
	dir := l.flowsDir(botID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("bot %s: %w", botID, domain.ErrFlowNotFound)
	}

	var flows []domain.Flow
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || flowSuffix(d.Name()) == "" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := l.readFlow(path)
		if err != nil {
			return fmt.Errorf("flow %s: %w", rel, err)
		}
		if f.Name == "" {
			f.Name = FlowName(rel)
		}
		flows = append(flows, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(flows) == 0 {
		return nil, fmt.Errorf("bot %s: %w", botID, domain.ErrFlowNotFound)
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].Name < flows[j].Name })
	return flows, nil
}

// Bots lists the bot ids that have a flows directory, sorted. A single-bot
// loader has none to list.
func (l *Loader) Bots() ([]string, error) {
	if l.singleBot {
		return nil, nil
	}
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read bots directory: %w", err)
	}
	var bots []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if info, err := os.Stat(filepath.Join(l.root, e.Name(), "flows")); err == nil && info.IsDir() {
			bots = append(bots, e.Name())
		}
	}
	return bots, nil
}

// FlowName converts a path relative to the flows directory into a flow name.
func FlowName(rel string) string {
	rel = filepath.ToSlash(rel)
	if suffix := flowSuffix(rel); suffix != "" {
		rel = strings.TrimSuffix(rel, suffix)
	}
	return rel + domain.FlowSuffix
}

func flowSuffix(name string) string {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return s
		}
	}
	return ""
}

func (l *Loader) readFlow(path string) (domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Flow{}, err
	}

	var raw map[string]any
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return domain.Flow{}, fmt.Errorf("failed to parse: %w", err)
	}
	if raw == nil {
		return domain.Flow{}, errors.New("empty document")
	}
	return Decode(raw)
}

var nodeInstructionType = reflect.TypeOf(domain.NodeInstruction{})

// stringToInstructionHook accepts the short form of node instructions: a plain fn string.
func stringToInstructionHook(from, to reflect.Type, data any) (any, error) {
	if to == nodeInstructionType && from.Kind() == reflect.String {
		return domain.NodeInstruction{Fn: data.(string)}, nil
	}
	return data, nil
}

// Decode converts a generic document into a flow.
func Decode(raw map[string]any) (domain.Flow, error) {
	var f domain.Flow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToInstructionHook,
		Result:           &f,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return f, err
	}
	if err := dec.Decode(raw); err != nil {
		return f, fmt.Errorf("failed to decode flow: %w", err)
	}
	return f, nil
}
