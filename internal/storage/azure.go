package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
)

// azureTarget implements Target for Azure Blob Storage.
type azureTarget struct {
	client    *azblob.Client
	container string
	prefix    string
	name      string
}

func newAzureTarget(cfg Config) (Target, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}

	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.StorageAccount)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure blob client: %w", err)
	}

	return &azureTarget{
		client:    client,
		container: cfg.Container,
		prefix:    normalizePrefix(cfg.Prefix),
		name:      cfg.Name,
	}, nil
}

func (t *azureTarget) Name() string {
	return t.name
}

func (t *azureTarget) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	uploadOpts := &blockblob.UploadStreamOptions{}
	if opts.ContentType != "" {
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &opts.ContentType}
	}
	if len(opts.Metadata) > 0 {
		m := make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			m[k] = &v
		}
		uploadOpts.Metadata = m
	}

	if _, err := t.client.UploadStream(ctx, t.container, t.prefix+key, body, uploadOpts); err != nil {
		return fmt.Errorf("azure UploadStream %q: %w", key, err)
	}
	return nil
}

func (t *azureTarget) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := t.client.DownloadStream(ctx, t.container, t.prefix+key, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("azure DownloadStream %q: %w", key, err)
	}
	return resp.Body, nil
}

func (t *azureTarget) Delete(ctx context.Context, key string) error {
	if _, err := t.client.DeleteBlob(ctx, t.container, t.prefix+key, nil); err != nil && !isAzureNotFound(err) {
		return fmt.Errorf("azure DeleteBlob %q: %w", key, err)
	}
	return nil
}

func (t *azureTarget) Ping(ctx context.Context) error {
	cc := t.client.ServiceClient().NewContainerClient(t.container)
	if _, err := cc.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("azure container properties %q: %w", t.container, err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}
