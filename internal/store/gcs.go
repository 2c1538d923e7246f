package store

import (
	"context"
	stderrors "errors"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"git.home.luguber.info/inful/mergekeeper/internal/mergeunit"
)

// GCSStore keeps descriptors as objects "<prefix>/<folder>/<name>" in a bucket.
// GCS has no rename, so Move copies the object and deletes the source.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStore opens bucket using application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, storeError("connect", bucket, err)
	}
	return &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *GCSStore) objectName(p string) string {
	if s.prefix == "" {
		return p
	}
	return path.Join(s.prefix, p)
}

func (s *GCSStore) folderPrefix(folder mergeunit.Folder) string {
	return s.objectName(string(folder)) + "/"
}

func (s *GCSStore) List(ctx context.Context, folder mergeunit.Folder) ([]Entry, error) {
	prefix := s.folderPrefix(folder)
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var entries []Entry
	for {
		attrs, err := it.Next()
		if stderrors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storeError("list", string(folder), err)
		}
		// GCS uses empty objects and prefixes to simulate directories
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		entries = append(entries, Entry{
			Name:    name,
			Path:    Join(folder, name),
			Folder:  folder,
			ModTime: attrs.Updated,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *GCSStore) Read(ctx context.Context, p string) ([]byte, error) {
	if _, _, err := Split(p); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(s.objectName(p)).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(p)
		}
		return nil, storeError("read", p, err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, storeError("read", p, err)
	}
	return data, nil
}

func (s *GCSStore) Write(ctx context.Context, folder mergeunit.Folder, name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	p := Join(folder, name)
	w := s.bucket.Object(s.objectName(p)).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", storeError("write", p, err)
	}
	if err := w.Close(); err != nil {
		return "", storeError("write", p, err)
	}
	return p, nil
}

func (s *GCSStore) Move(ctx context.Context, p string, to mergeunit.Folder) (string, error) {
	from, name, err := Split(p)
	if err != nil {
		return "", err
	}
	if from == to {
		return p, nil
	}
	dest := Join(to, name)
	src := s.bucket.Object(s.objectName(p))
	if _, err := s.bucket.Object(s.objectName(dest)).CopierFrom(src).Run(ctx); err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return "", notFound(p)
		}
		return "", storeError("move", p, err)
	}
	if err := src.Delete(ctx); err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
		return "", storeError("move", p, err)
	}
	return dest, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }
