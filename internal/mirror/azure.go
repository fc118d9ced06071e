package mirror

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureUploader writes block blobs to an Azure Storage container
type AzureUploader struct {
	container azblob.ContainerURL
	account   string
	name      string
}

// NewAzureUploader authenticates with a shared account key
func NewAzureUploader(account, accountKey, container string) (*AzureUploader, error) {
	if account == "" || accountKey == "" {
		return nil, fmt.Errorf("Azure storage account and key are required")
	}

	credential, err := azblob.NewSharedKeyCredential(account, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure credentials: %w", err)
	}

	// https://<account>.blob.core.windows.net/<container>
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", account, container))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure container URL: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	return &AzureUploader{
		container: azblob.NewContainerURL(*u, pipeline),
		account:   account,
		name:      container,
	}, nil
}

func (u *AzureUploader) Put(ctx context.Context, key string, data []byte) error {
	blob := u.container.NewBlockBlobURL(key)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blob, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "text/plain; charset=utf-8"},
	})
	return err
}

func (u *AzureUploader) Location(key string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", u.account, u.name, key)
}
