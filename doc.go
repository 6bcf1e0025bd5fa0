// Package rfile provides remote-backed image files: objects that live in a
// durable store, are copied to local disk on demand, transformed locally
// and synchronized back.
//
// An Object is in one of four states. It is remote only until its bytes
// are needed, clean once downloaded, dirty after a transform or a fresh
// upload, and deleted after Delete. Dirty bytes are written on Push,
// CopyTo and Close.
//
// Basic usage:
//
//	store, _ := rfile.NewFSStore(rfile.FSConfig{Root: "/var/lib/rfile"})
//	defer store.Close()
//
//	// Wrap uploaded bytes; a free key is allocated right away
//	obj, _ := rfile.FromUpload(ctx, store, r, "photo.jpg", rfile.WithBucket("media"))
//	defer obj.Close() // pushes anything not yet written
//
//	// Transform in place
//	obj.FitWithin(ctx, 800, 800)
//	info, _ := obj.Dimensions(ctx)
//	fmt.Println(obj.Key(), info.Width, info.Height)
//
//	// Write now and hand out a link
//	obj.Push(ctx)
//	link, _ := obj.URL(ctx, nil, 0)
//
// Existing objects:
//
//	obj, _ := rfile.FromKey(store, "202401/abcd1234.jpg", rfile.WithBucket("media"))
//	size, _ := obj.Size(ctx)       // listing only, nothing downloaded
//	p, _ := obj.LocalPath(ctx)     // downloads on first use
//	newKey, _ := obj.CopyTo(ctx, "thumbs")
//	obj.Delete(ctx)
//
// Stores: NewFSStore (local directory, HMAC-signed links), NewS3Store,
// NewMinioStore and NewOCIStore (container registry, no signed links).
package rfile
