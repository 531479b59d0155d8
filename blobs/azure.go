package blobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"github.com/jrsteele09/go-blob-drive/internal/utils"
)

// AzureRepo is a Repo backed by one Azure Blob Storage container.
type AzureRepo struct {
	client    *azblob.Client
	container string
}

var _ Repo = (*AzureRepo)(nil)

// NewAzureRepo connects with an account connection string. The account key in it is also used to sign read URLs.
func NewAzureRepo(connectionString, container string) (*AzureRepo, error) {
	if connectionString == "" || container == "" {
		return nil, fmt.Errorf("[blobs NewAzureRepo] %w: connection string and container are required", apperrors.ErrMissingConfig)
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("[blobs NewAzureRepo] %w: %w", apperrors.ErrInvalidConfig, err)
	}
	return &AzureRepo{client: client, container: container}, nil
}

func (r *AzureRepo) List(ctx context.Context) ([]Blob, error) {
	var blobs []Blob
	pager := r.client.NewListBlobsFlatPager(r.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapError("List", "", err)
		}
		for _, item := range page.Segment.BlobItems {
			b := Blob{Name: utils.Value(item.Name)}
			if props := item.Properties; props != nil {
				b.Size = utils.Value(props.ContentLength)
				b.ContentType = utils.Value(props.ContentType)
				b.LastModified = utils.Value(props.LastModified)
			}
			blobs = append(blobs, b)
		}
	}
	return blobs, nil
}

func (r *AzureRepo) Get(ctx context.Context, name string) (io.ReadCloser, Blob, error) {
	resp, err := r.client.DownloadStream(ctx, r.container, name, nil)
	if err != nil {
		return nil, Blob{}, mapError("Get", name, err)
	}
	return resp.Body, Blob{
		Name:         name,
		Size:         utils.Value(resp.ContentLength),
		ContentType:  utils.Value(resp.ContentType),
		LastModified: utils.Value(resp.LastModified),
	}, nil
}

func (r *AzureRepo) Put(ctx context.Context, name string, data []byte, contentType string, overwrite bool) error {
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)}
	}
	if !overwrite {
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	}
	if _, err := r.client.UploadBuffer(ctx, r.container, name, data, opts); err != nil {
		return mapError("Put", name, err)
	}
	return nil
}

func (r *AzureRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.client.DeleteBlob(ctx, r.container, name, nil); err != nil {
		return mapError("Delete", name, err)
	}
	return nil
}

func (r *AzureRepo) TemporaryReadURL(name string, ttl time.Duration) (string, error) {
	blobClient := r.client.ServiceClient().NewContainerClient(r.container).NewBlobClient(name)
	u, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(ttl), nil)
	if err != nil {
		return "", fmt.Errorf("[AzureRepo TemporaryReadURL] %s: %w", name, err)
	}
	return u, nil
}

func mapError(op, name string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return fmt.Errorf("[AzureRepo %s] %s: %w", op, name, apperrors.ErrBlobNotFound)
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return fmt.Errorf("[AzureRepo %s] %s: %w", op, name, apperrors.ErrBlobExists)
	default:
		return fmt.Errorf("[AzureRepo %s] %s: %w", op, name, err)
	}
}
