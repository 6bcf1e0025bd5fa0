package rfile

import (
	"context"
	"fmt"
	"image"
	"os"
	"path"

	"github.com/aweris/rfile/internal/imaging"
	"github.com/aweris/rfile/internal/naming"
)

// transformation describes one geometry change. unchanged reports whether
// the current image already satisfies it, in which case nothing is written.
type transformation struct {
	name      string
	unchanged func(imaging.Info) bool
	apply     func(*imaging.Engine, image.Image) (*image.RGBA, error)
	relocate  bool
}

// ResizeExact stretches the image to w x h, ignoring its ratio.
func (o *Object) ResizeExact(ctx context.Context, w, h int) error {
	return o.transform(ctx, transformation{
		name:      "resize",
		unchanged: sameSize(w, h),
		apply: func(e *imaging.Engine, img image.Image) (*image.RGBA, error) {
			return e.Resize(img, w, h)
		},
	})
}

// FitWithin shrinks the image proportionally until it fits maxW x maxH.
// Smaller images are left alone.
func (o *Object) FitWithin(ctx context.Context, maxW, maxH int) error {
	return o.transform(ctx, transformation{
		name: "fit",
		unchanged: func(info imaging.Info) bool {
			return maxW > 0 && maxH > 0 && info.Width <= maxW && info.Height <= maxH
		},
		apply: func(e *imaging.Engine, img image.Image) (*image.RGBA, error) {
			return e.Fit(img, maxW, maxH)
		},
	})
}

// ScaleWithBars produces exactly w x h with the whole image centered on
// the engine background.
func (o *Object) ScaleWithBars(ctx context.Context, w, h int) error {
	return o.transform(ctx, transformation{
		name:      "scale",
		unchanged: sameSize(w, h),
		apply: func(e *imaging.Engine, img image.Image) (*image.RGBA, error) {
			return e.Scale(img, w, h)
		},
	})
}

// CropToAspect cuts the image to the w:h ratio around its center and
// resamples the result to exactly w x h.
func (o *Object) CropToAspect(ctx context.Context, w, h int) error {
	return o.transform(ctx, transformation{
		name:      "fill",
		unchanged: sameSize(w, h),
		apply: func(e *imaging.Engine, img image.Image) (*image.RGBA, error) {
			return e.Fill(img, w, h)
		},
	})
}

// CropExact copies the w x h block starting at (top, left) without
// scaling; top is the source x offset and left the source y offset. Unless sameLocation is set the stored entry is deleted and the
// object moves to a new key, written on the next push.
func (o *Object) CropExact(ctx context.Context, top, left, w, h int, sameLocation bool) error {
	return o.transform(ctx, transformation{
		name: "crop",
		apply: func(e *imaging.Engine, img image.Image) (*image.RGBA, error) {
			return e.Excerpt(img, top, left, w, h)
		},
		relocate: !sameLocation,
	})
}

func sameSize(w, h int) func(imaging.Info) bool {
	return func(info imaging.Info) bool {
		return info.Width == w && info.Height == h
	}
}

// transform runs decode, apply and encode into a staged file, then swaps
// it in. On any failure the staged file is removed and the installed copy
// is left as it was.
func (o *Object) transform(ctx context.Context, t transformation) error {
	src, err := o.LocalPath(ctx)
	if err != nil {
		return err
	}
	info, err := inspect(src)
	if err != nil {
		return err
	}
	o.contentType = info.MIME

	if t.unchanged != nil && t.unchanged(info) {
		o.log.Debug().Str("key", o.key).Str("op", t.name).Msg("image already has the requested geometry")
		return nil
	}

	img, err := decodeFile(src, info.Format)
	if err != nil {
		return err
	}
	out, err := t.apply(o.engine, img)
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.name, o.key, err)
	}

	staged, err := o.cache.Stage(naming.Extension(o.key))
	if err != nil {
		return err
	}
	err = imaging.Encode(staged, out, info.Format, o.engine.Quality)
	if cerr := staged.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(staged.Name())
		return fmt.Errorf("%w: encode %s: %w", ErrIO, info.Format, err)
	}

	// Relocation is the last step that can fail; Replace cannot.
	if t.relocate {
		if err := o.relocate(ctx); err != nil {
			os.Remove(staged.Name())
			return err
		}
	}

	o.cache.Replace(staged.Name())
	o.size = -1

	b := out.Bounds()
	o.log.Debug().Str("key", o.key).Str("op", t.name).Int("width", b.Dx()).Int("height", b.Dy()).Msg("transformed image")
	return nil
}

// relocate allocates a new key and deletes the entry at the current one.
func (o *Object) relocate(ctx context.Context) error {
	dir, file, err := o.names.Generate(ctx, path.Base(o.key), o.bucket)
	if err != nil {
		return err
	}
	if err := o.store.Delete(ctx, o.bucket, o.key); err != nil {
		return fmt.Errorf("delete %s: %w", o.key, err)
	}
	o.log.Debug().Str("from", o.key).Str("to", path.Join(dir, file)).Msg("relocated object")
	o.key = path.Join(dir, file)
	o.dir = dir
	return nil
}

func decodeFile(p string, f imaging.Format) (image.Image, error) {
	r, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer r.Close()
	return imaging.Decode(r, f)
}
