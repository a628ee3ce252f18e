package medium

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"chatline/config"
	"chatline/pkg/consts"
	"chatline/utilities"
	"chatline/utilities/http_client"
)

// MediaUpload holds what a stored attachment contributes to the message:
// the hosted URL plus playback metadata.
type MediaUpload struct {
	SecureURL string  `json:"secure_url"`
	Format    string  `json:"format"`
	Duration  float64 `json:"duration"`
	Bytes     int64   `json:"bytes"`
}

type MediaClient struct {
	Conf *config.ChatlineConfModel
}

func NewMediaClient(conf *config.ChatlineConfModel) *MediaClient {
	return &MediaClient{Conf: conf}
}

// resourceClass maps a message type onto the upload endpoint's resource
// segment. Audio rides the video pipeline, documents go in raw.
func resourceClass(msgType string) string {
	switch msgType {
	case consts.MsgTypeImage:
		return consts.MediaResourceImage
	case consts.MsgTypeVideo, consts.MsgTypeAudio:
		return consts.MediaResourceVideo
	default:
		return consts.MediaResourceRaw
	}
}

// Upload streams the attachment to the media host. The message is only
// appended after a successful upload, so any failure here aborts the send.
func (m *MediaClient) Upload(fileName, msgType string, payload io.Reader, size int64) (*MediaUpload, error) {
	log := utilities.NewLoggerWithFields("media.Upload", map[string]interface{}{"file": fileName})

	if m.Conf.Media.MaxSizeBytes > 0 && size > m.Conf.Media.MaxSizeBytes {
		return nil, fmt.Errorf("attachment %s exceeds the %d byte limit", fileName, m.Conf.Media.MaxSizeBytes)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, payload); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("upload_preset", m.Conf.Media.UploadPreset); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	url := fmt.Sprintf("%s/%s/upload", m.Conf.Media.UploadURL, resourceClass(msgType))
	req, err := http.NewRequest(http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http_client.GetStreamingClient().Do(req)
	if err != nil {
		log.WithError(err).Error("media upload failed")
		return nil, fmt.Errorf("uploading %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Errorf("media host returned %s: %s", resp.Status, string(body))
		return nil, fmt.Errorf("uploading %s: status %s", fileName, resp.Status)
	}

	var upload MediaUpload
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if upload.SecureURL == "" {
		return nil, fmt.Errorf("media host returned no url for %s", fileName)
	}
	return &upload, nil
}
