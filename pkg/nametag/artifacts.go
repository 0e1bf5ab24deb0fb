package nametag

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

const (
	defaultCodeCacheSize = 1024
	// matchThreshold is the share of equal hex characters above which deployed
	// code is attributed to an artifact.
	matchThreshold = 0.5
)

// Artifact is the subset of a compiled contract artifact used for matching.
type Artifact struct {
	ContractName     string `json:"contractName"`
	DeployedBytecode string `json:"deployedBytecode"`
}

// Artifacts names contracts by comparing their deployed code with compiled
// artifacts.
type Artifacts struct {
	log       logrus.FieldLogger
	reader    CodeReader
	artifacts []Artifact
	code      *lru.Cache
}

func NewArtifacts(log logrus.FieldLogger, reader CodeReader, artifacts []Artifact) (*Artifacts, error) {
	code, err := lru.New(defaultCodeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create code cache: %w", err)
	}

	return &Artifacts{
		log:       log.WithField("component", "nametag_artifacts"),
		reader:    reader,
		artifacts: artifacts,
		code:      code,
	}, nil
}

// LoadArtifacts reads every artifact JSON file below dir. Debug files and
// files without deployed code are skipped.
func LoadArtifacts(dir string) ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", path, err)
		}

		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			// build-info and other tool files share the directory
			return nil
		}

		if a.ContractName == "" || len(a.DeployedBytecode) <= 2 {
			return nil
		}

		artifacts = append(artifacts, a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts from %s: %w", dir, err)
	}

	return artifacts, nil
}

func (r *Artifacts) Name() string { return "artifacts" }

func (r *Artifacts) Resolve(ctx context.Context, addr common.Address) (string, error) {
	if len(r.artifacts) == 0 {
		return "", nil
	}

	code, err := r.codeAt(ctx, addr)
	if err != nil {
		return "", err
	}

	deployed := hexutil.Encode(code)

	for _, a := range r.artifacts {
		if CompareBytecode(a.DeployedBytecode, deployed) > matchThreshold {
			return a.ContractName, nil
		}
	}

	return "", nil
}

func (r *Artifacts) codeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	if cached, ok := r.code.Get(addr); ok {
		if code, isBytes := cached.([]byte); isBytes {
			return code, nil
		}
	}

	code, err := r.reader.CodeAt(ctx, addr)
	if err != nil {
		return nil, err
	}

	r.code.Add(addr, code)

	return code, nil
}

// CompareBytecode returns the share of hex characters of artifact that are
// equal at the same position in deployed. Library link placeholders are
// compared as zeros.
func CompareBytecode(artifact, deployed string) float64 {
	if len(artifact) <= 2 || len(deployed) <= 2 {
		return 0
	}

	artifact = strings.ReplaceAll(artifact, "__$", "000")
	artifact = strings.ReplaceAll(artifact, "$__", "000")
	artifact = strings.ToLower(artifact)
	deployed = strings.ToLower(deployed)

	matched := 0

	for i := 0; i < len(artifact) && i < len(deployed); i++ {
		if artifact[i] == deployed[i] {
			matched++
		}
	}

	return float64(matched) / float64(len(artifact))
}
