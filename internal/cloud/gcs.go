// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file holds the Google Cloud Storage helpers used for generated media:
// parsing `gs://` URIs, mapping them to public URLs, uploading generated
// bytes and producing V4 signed URLs.
//
// Structs:
//   - GCSObject: A bucket, object name and MIME type triple.
//   - ObjectStore: Upload and signing on top of the storage client.
//
// Functions:
//   - ParseGCSURI: Splits `gs://bucket/object` into a GCSObject.
//   - PublicURL: Maps a GCSObject to its `https://storage.googleapis.com` URL.
package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-persona-research/internal/apperr"
)

const (
	GCSScheme        = "gs://"
	PublicStorageURL = "https://storage.googleapis.com/"
)

// GCSObject is a reference to an object in a bucket.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4").
}

// URI returns the `gs://` form of the object.
func (o GCSObject) URI() string {
	return GCSScheme + o.Bucket + "/" + o.Name
}

// ParseGCSURI splits a `gs://bucket/object` URI. Both parts must be non-empty.
func ParseGCSURI(uri string) (GCSObject, error) {
	if !strings.HasPrefix(uri, GCSScheme) {
		return GCSObject{}, fmt.Errorf("not a gs:// uri: %q", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, GCSScheme), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return GCSObject{}, fmt.Errorf("uri %q has no bucket or object", uri)
	}
	return GCSObject{Bucket: parts[0], Name: parts[1]}, nil
}

// ParseMediaURI accepts either a gs:// URI or a storage.googleapis.com URL
// as produced by PublicURL.
func ParseMediaURI(uri string) (GCSObject, error) {
	if strings.HasPrefix(uri, PublicStorageURL) {
		uri = GCSScheme + strings.TrimPrefix(uri, PublicStorageURL)
	}
	return ParseGCSURI(uri)
}

// PublicURL maps an object to its storage.googleapis.com address. The
// mapping is deterministic; it does not make the object readable.
func PublicURL(o GCSObject) string {
	return PublicStorageURL + o.Bucket + "/" + o.Name
}

// ObjectStore uploads and signs generated media.
type ObjectStore struct {
	Client      *storage.Client
	IAMClient   *credentials.IamCredentialsClient // Optional. When set with SignerEmail, URLs are signed through IAM SignBlob.
	SignerEmail string
	Policy      CallPolicy
}

// NewObjectStore creates an object store.
func NewObjectStore(client *storage.Client, iam *credentials.IamCredentialsClient, signerEmail string, policy CallPolicy) *ObjectStore {
	return &ObjectStore{Client: client, IAMClient: iam, SignerEmail: signerEmail, Policy: policy}
}

// Upload writes data to bucket/name.
//
// Inputs:
//   - ctx: The request context.
//   - obj: The destination. MIMEType becomes the object's content type.
//   - data: The bytes to write.
//
// Outputs:
//   - error: A STORAGE_ERROR AppError on failure.
func (s *ObjectStore) Upload(ctx context.Context, obj GCSObject, data []byte) error {
	err := s.Policy.Do(ctx, func(ctx context.Context) error {
		wc := s.Client.Bucket(obj.Bucket).Object(obj.Name).NewWriter(ctx)
		wc.ContentType = obj.MIMEType
		if _, err := wc.Write(data); err != nil {
			_ = wc.Close()
			return err
		}
		return wc.Close()
	})
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "failed to upload generated media", err).
			WithContext("object", obj.URI())
	}
	return nil
}

// SignedURL returns a V4 signed GET URL for obj that expires after expires.
func (s *ObjectStore) SignedURL(ctx context.Context, obj GCSObject, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
	}
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	url, err := s.Client.Bucket(obj.Bucket).SignedURL(obj.Name, opts)
	if err != nil {
		return "", apperr.Wrap(apperr.StorageError, "failed to sign media url", err).
			WithContext("object", obj.URI())
	}
	return url, nil
}
