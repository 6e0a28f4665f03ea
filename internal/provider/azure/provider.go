// Package azure replicates packed backup archives to Azure Blob Storage.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/EonsofStupid/EzDbMigrate/internal/retry"
	"github.com/EonsofStupid/EzDbMigrate/internal/util"
)

// Archives are always zip files.
var blobHTTPHeadersZip = blob.HTTPHeaders{BlobContentType: to.Ptr("application/zip")}

// ArchiveProvider stores backup archives in a blob container.
type ArchiveProvider struct {
	client    *azblob.Client
	container string
	ro        retry.Options
}

func (p *ArchiveProvider) Name() string { return "azure" }

// Backup uploads the archive with its sha256 as blob metadata, then validates
// the uploaded blob's size against the local file.
func (p *ArchiveProvider) Backup(ctx context.Context, source, target string) error {
	key := normalizeKey(target)

	sum, size, err := util.SHA256File(source)
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}

	upStart := time.Now()
	upAttempt := 0
	uploadOnce := func(ctx context.Context) error {
		upAttempt++
		log.Debug().Str("action", "azure_upload").Str("container", p.container).Str("key", key).
			Int("attempt", upAttempt).Msg("starting attempt")

		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("file", source).Msg("failed to close archive after upload")
			}
		}()
		_, err = p.client.UploadFile(ctx, p.container, key, f, &azblob.UploadFileOptions{
			Metadata:    map[string]*string{"sha256": to.Ptr(sum)},
			HTTPHeaders: &blobHTTPHeadersZip,
		})
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_upload").Str("container", p.container).
				Str("key", key).Int("attempt", upAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, uploadOnce); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	log.Info().Str("action", "azure_upload").Str("container", p.container).Str("key", key).
		Int("attempts", upAttempt).Dur("elapsed_ms", time.Since(upStart)).Msg("upload OK")

	validateOnce := func(ctx context.Context) error {
		found, remoteSize, err := p.findBlobSize(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("uploaded blob not found at %q", key)
		}
		if remoteSize != size {
			return fmt.Errorf("size mismatch: local=%d, remote=%d", size, remoteSize)
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, validateOnce); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	log.Info().Str("action", "azure_validate").Str("container", p.container).Str("key", key).
		Int64("size", size).Msg("validation OK")
	return nil
}

// Restore downloads an archive blob to a local path with retries.
func (p *ArchiveProvider) Restore(ctx context.Context, source, target string) error {
	key := normalizeKey(source)

	dlStart := time.Now()
	dlAttempt := 0
	downloadOnce := func(ctx context.Context) error {
		dlAttempt++
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("file", target).Msg("failed to close local file after download")
			}
		}()
		_, err = p.client.DownloadFile(ctx, p.container, key, out, nil)
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_download").Str("container", p.container).
				Str("key", key).Int("attempt", dlAttempt).Msg("attempt failed")
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, p.ro, isAzRetryable, downloadOnce); err != nil {
		return err
	}
	log.Info().Str("action", "azure_download").Str("container", p.container).Str("key", key).
		Str("local", target).Int("attempts", dlAttempt).Dur("elapsed_ms", time.Since(dlStart)).Msg("download OK")
	return nil
}

// findBlobSize lists by prefix and returns (found, size) for the exact key.
func (p *ArchiveProvider) findBlobSize(ctx context.Context, exactKey string) (bool, int64, error) {
	pager := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix:     to.Ptr(exactKey),
		MaxResults: to.Ptr(int32(1)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, 0, err
		}
		for _, it := range page.Segment.BlobItems {
			if it.Name != nil && *it.Name == exactKey {
				if it.Properties != nil && it.Properties.ContentLength != nil {
					return true, *it.Properties.ContentLength, nil
				}
				return true, 0, nil
			}
		}
	}
	return false, 0, nil
}

// isAzRetryable: retry rules for Azure (timeout, 5xx, 429, 408, ServerBusy).
func isAzRetryable(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		if re.StatusCode == http.StatusTooManyRequests || re.StatusCode == http.StatusRequestTimeout {
			return true
		}
		if re.StatusCode >= 500 && re.StatusCode <= 599 {
			return true
		}
		if re.ErrorCode == string(bloberror.ServerBusy) {
			return true
		}
	}
	return false
}

func normalizeKey(k string) string {
	for len(k) > 0 && k[0] == '/' {
		k = k[1:]
	}
	return k
}
