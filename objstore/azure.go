package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type azureBackend struct {
	containerClient *container.Client
}

func newAzureBackend(ctx context.Context, cfg Config) (Backend, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	client, err := azblob.NewClient(cfg.AzureAccountURL, cred, nil)
	if err != nil {
		return nil, err
	}
	return &azureBackend{containerClient: client.ServiceClient().NewContainerClient(cfg.Bucket)}, nil
}

func (b *azureBackend) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	blob := b.containerClient.NewBlockBlobClient(key)
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, r); err != nil {
		return err
	}
	_, err := blob.UploadBuffer(ctx, buf.Bytes(), nil)
	return err
}

func (b *azureBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	blob := b.containerClient.NewBlobClient(key)
	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

func (b *azureBackend) Delete(ctx context.Context, key string) error {
	blob := b.containerClient.NewBlobClient(key)
	_, err := blob.Delete(ctx, nil)
	return err
}

func (b *azureBackend) Head(ctx context.Context, key string) (bool, int64, error) {
	blob := b.containerClient.NewBlobClient(key)
	props, err := blob.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	size := int64(0)
	if props.ContentLength != nil {
		size = *props.ContentLength
	}
	return true, size, nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}
