package bot

import (
	"context"
	"errors"
	"fmt"

	"imgbot/internal/eventbus"
	"imgbot/internal/i18n"
	"imgbot/internal/transport/telegram/router"
	"imgbot/internal/upload"
	logx "imgbot/pkg/logx"
)

// ImageUploaded is the payload of image.uploaded events.
type ImageUploaded struct {
	UserID int64
	URL    string
	Bytes  int
}

// handlePhoto downloads the largest photo size, hands it to the uploader,
// records the upload and answers with the hosted image and its link.
func (b *Bot) handlePhoto(ctx context.Context, req *router.Request) error {
	photo := req.Update.Message.Photo

	data, err := req.Adapter.DownloadFile(ctx, photo.FileID)
	if err != nil {
		b.reply(ctx, req, b.t(req, i18n.KeyPhotoError))
		return fmt.Errorf("download photo: %w", err)
	}
	req.Logger.Info("photo downloaded", logx.Int("bytes", len(data)))

	url, err := b.uploader.Upload(ctx, data)
	if err != nil {
		if errors.Is(err, upload.ErrUpstream) {
			b.reply(ctx, req, b.t(req, i18n.KeyUploadFailed))
		} else {
			b.reply(ctx, req, b.t(req, i18n.KeyPhotoError))
		}
		return fmt.Errorf("upload photo: %w", err)
	}

	if err := b.reg.RecordUpload(ctx, req.From.ID, url); err != nil {
		b.reply(ctx, req, b.t(req, i18n.KeyPhotoError))
		return fmt.Errorf("record upload: %w", err)
	}
	req.Logger.Info("image uploaded", logx.String("url", url))
	b.publish(eventbus.TypeImageUploaded, ImageUploaded{UserID: req.From.ID, URL: url, Bytes: len(data)})

	caption := b.t(req, i18n.KeyUploadDone, url)
	if _, err := req.Adapter.SendPhoto(ctx, req.Chat, url, caption, nil); err != nil {
		// the host may not be reachable by Telegram yet; the link alone is enough
		req.Logger.Warn("photo reply failed; sending link as text", logx.Err(err))
		b.reply(ctx, req, caption)
	}
	return nil
}
