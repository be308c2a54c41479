package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	Scheme          = "oci://"
	defaultFileName = "fusion-bundle.zip"
)

var ErrNoLayers = errors.New("manifest has no layers")

// Resolver turns the artifact input into a local file. Plain paths are
// checked and returned as they are; oci:// references are pulled and their
// first layer written to WorkDir.
type Resolver struct {
	WorkDir   string
	Username  string
	Password  string
	PlainHTTP bool
	Logger    *zap.Logger
}

func (r *Resolver) Resolve(ctx context.Context, artifact string) (string, error) {
	if !strings.HasPrefix(artifact, Scheme) {
		info, err := os.Stat(artifact)
		if err != nil {
			return "", fmt.Errorf("artifact %s: %w", artifact, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("artifact %s is a directory", artifact)
		}
		return artifact, nil
	}

	ref := strings.TrimPrefix(artifact, Scheme)
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return "", fmt.Errorf("invalid artifact reference %s: %w", ref, err)
	}
	repo.PlainHTTP = r.PlainHTTP
	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if r.Password != "" {
		client.Credential = auth.StaticCredential(repo.Reference.Registry, auth.Credential{
			Username: r.Username,
			Password: r.Password,
		})
	}
	repo.Client = client

	tag := repo.Reference.Reference
	if tag == "" {
		tag = "latest"
	}
	return r.pull(ctx, repo, tag)
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// pull copies tag from src into an OCI layout under WorkDir and writes the
// first layer next to it.
func (r *Resolver) pull(ctx context.Context, src oras.ReadOnlyTarget, tag string) (string, error) {
	dir := r.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "fusion-artifact-")
		if err != nil {
			return "", fmt.Errorf("create work dir: %w", err)
		}
		dir = tmp
	}

	store, err := oci.New(filepath.Join(dir, "layout"))
	if err != nil {
		return "", fmt.Errorf("failed to create oci store: %w", err)
	}

	desc, err := oras.Copy(ctx, src, tag, store, tag, oras.DefaultCopyOptions)
	if err != nil {
		return "", fmt.Errorf("oras copy failed: %w", err)
	}
	r.logger().Debug("pulled artifact", zap.String("tag", tag), zap.String("digest", desc.Digest.String()))

	raw, err := content.FetchAll(ctx, store, desc)
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return "", fmt.Errorf("decode manifest: %w", err)
	}
	var layers []ocispec.Descriptor
	for _, l := range manifest.Layers {
		if l.MediaType != ocispec.MediaTypeEmptyJSON {
			layers = append(layers, l)
		}
	}
	if len(layers) == 0 {
		return "", ErrNoLayers
	}

	layer := layers[0]
	data, err := content.FetchAll(ctx, store, layer)
	if err != nil {
		return "", fmt.Errorf("read layer %s: %w", layer.Digest, err)
	}

	name := filepath.Base(layer.Annotations[ocispec.AnnotationTitle])
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = defaultFileName
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	return path, nil
}
