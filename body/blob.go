package body

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/eslider/mailbox/blobstore"
)

// BlobRef points at a body payload held out of line in a blobstore.Store,
// for bodies too large to keep resident (attachments, PST-extracted
// message/rfc822 parts). Key is the store key; Size is cached so Body.Size
// never needs to touch the store.
type BlobRef struct {
	Key  string
	Size int64
}

// NewBlob builds a Body backed by an already-written blob.
func NewBlob(ref BlobRef) *Body {
	return &Body{Kind: KindBlob, Blob: &ref}
}

// Materialize fetches the blob's bytes from store, decoding the given
// transfer-encoding. It never caches the result on the Body, since blob
// bodies exist specifically to avoid holding large payloads resident.
func (b *Body) Materialize(ctx context.Context, store blobstore.Store) ([]byte, error) {
	if b == nil || b.Kind != KindBlob {
		return nil, eris.New("body: Materialize called on non-blob body")
	}
	raw, err := store.Read(ctx, b.Blob.Key)
	if err != nil {
		return nil, eris.Wrap(err, "body: materialize blob")
	}
	decoded, err := Lookup(b.TransferEncoding).Decode(raw)
	if err != nil {
		return nil, eris.Wrap(err, "body: decode blob")
	}
	return decoded, nil
}

// StoreBlob encodes data per transferEncoding and writes it to store under
// key, returning a Body referencing it.
func StoreBlob(ctx context.Context, store blobstore.Store, key string, data []byte, mimeType, transferEncoding string) (*Body, error) {
	encoded, err := Lookup(transferEncoding).Encode(data)
	if err != nil {
		return nil, eris.Wrap(err, "body: encode blob")
	}
	if err := store.Write(ctx, key, encoded); err != nil {
		return nil, eris.Wrap(err, "body: write blob")
	}
	b := NewBlob(BlobRef{Key: key, Size: int64(len(data))})
	b.MIMEType = mimeType
	b.TransferEncoding = transferEncoding
	return b, nil
}
