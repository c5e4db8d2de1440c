package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"idphoto/internal/domain"
	"idphoto/internal/intake"
	"idphoto/internal/media"
	"idphoto/internal/session"
	"idphoto/pkg/zip"
)

const resultFilename = "modified-id-photo.png"

type imageView struct {
	Name       string `json:"name,omitempty"`
	MediaType  string `json:"media_type"`
	Size       int64  `json:"size"`
	PreviewURL string `json:"preview_url"`
}

type sessionResponse struct {
	ID          string        `json:"id"`
	State       session.State `json:"state"`
	Source      *imageView    `json:"source"`
	Template    *imageView    `json:"template"`
	ResultURL   string        `json:"result_url,omitempty"`
	Error       string        `json:"error,omitempty"`
	CanGenerate bool          `json:"can_generate"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type generateResponse struct {
	Started bool            `json:"started"`
	Session sessionResponse `json:"session"`
}

func toImageView(img intake.EncodedImage) *imageView {
	if !img.Ready() {
		return nil
	}
	return &imageView{
		Name:       img.Name,
		MediaType:  img.MediaType,
		Size:       img.Size,
		PreviewURL: "/v1/previews/" + img.Display,
	}
}

func toSessionResponse(v session.View) sessionResponse {
	resp := sessionResponse{
		ID:          v.ID,
		State:       v.State,
		Source:      toImageView(v.Source),
		Template:    toImageView(v.Template),
		Error:       v.Error,
		CanGenerate: v.CanGenerate,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	if v.Result != "" {
		resp.ResultURL = "/v1/sessions/" + v.ID + "/result"
	}
	return resp
}

func (a *App) SessionCreate(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Create()
	a.logger(r).Info().Str("session_id", sess.ID()).Msg("session created")
	a.json(w, http.StatusCreated, toSessionResponse(sess.Snapshot()))
}

func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toSessionResponse(sess.Snapshot()))
}

func (a *App) SessionDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.Sessions.Delete(sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) SourcePut(w http.ResponseWriter, r *http.Request) {
	a.putImage(w, r, (*session.Session).SetSource)
}

func (a *App) TemplatePut(w http.ResponseWriter, r *http.Request) {
	a.putImage(w, r, (*session.Session).SetTemplate)
}

func (a *App) SourceDelete(w http.ResponseWriter, r *http.Request) {
	a.clearImage(w, r, (*session.Session).ClearSource)
}

func (a *App) TemplateDelete(w http.ResponseWriter, r *http.Request) {
	a.clearImage(w, r, (*session.Session).ClearTemplate)
}

func (a *App) putImage(w http.ResponseWriter, r *http.Request, set func(*session.Session, intake.EncodedImage) bool) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	// multipart framing needs some room above the file limit
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
		case errors.Is(err, http.ErrMissingFile):
			a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		}
		return
	}
	defer file.Close()

	img, err := a.Intake.Encode(r.Context(), &intake.File{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Reader:    file,
	})
	if err != nil {
		a.logger(r).Warn().Err(err).Str("session_id", sess.ID()).Msg("image intake failed")
		switch {
		case errors.Is(err, domain.ErrTooLarge):
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		case errors.Is(err, domain.ErrUnsupportedMedia):
			a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", "only PNG, JPEG and WEBP images are accepted")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return
	}
	if !set(sess, img) {
		// The session was deleted or swept while the upload was encoding.
		a.Intake.Release(img)
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	a.json(w, http.StatusOK, toSessionResponse(sess.Snapshot()))
}

func (a *App) clearImage(w http.ResponseWriter, r *http.Request, reset func(*session.Session)) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	reset(sess)
	a.json(w, http.StatusOK, toSessionResponse(sess.Snapshot()))
}

// SessionGenerate starts a run in the background and answers 202. With
// ?wait=true it runs inline and answers once the session left Running. A
// gated attempt answers 200 with started=false.
func (a *App) SessionGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		started := sess.Generate(r.Context())
		a.json(w, http.StatusOK, generateResponse{Started: started, Session: toSessionResponse(sess.Snapshot())})
		return
	}

	_, started := sess.Start(a.detached(r))
	code := http.StatusOK
	if started {
		code = http.StatusAccepted
	}
	a.json(w, code, generateResponse{Started: started, Session: toSessionResponse(sess.Snapshot())})
}

func (a *App) SessionResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	view := sess.Snapshot()
	if view.Result == "" {
		a.error(w, http.StatusNotFound, "not_found", "no result available")
		return
	}
	d, err := media.ParseDataURL(view.Result)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "stored result is malformed")
		return
	}
	data, err := d.Decode()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "stored result is malformed")
		return
	}
	w.Header().Set("Content-Type", d.MediaType)
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", resultFilename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SessionBundle zips whatever the session currently holds.
func (a *App) SessionBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	view := sess.Snapshot()

	var assets []zip.Asset
	for _, slot := range []struct {
		name string
		img  intake.EncodedImage
	}{{"source", view.Source}, {"template", view.Template}} {
		if !slot.img.Ready() {
			continue
		}
		preview, ok := a.Intake.Previews().Get(slot.img.Display)
		if !ok {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: slot.name + media.Extension(preview.MediaType),
			MIME:     preview.MediaType,
			Data:     preview.Data,
		})
	}
	if view.Result != "" {
		if d, err := media.ParseDataURL(view.Result); err == nil {
			if data, err := d.Decode(); err == nil {
				assets = append(assets, zip.Asset{Filename: resultFilename, MIME: d.MediaType, Data: data})
			}
		}
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "session has no images")
		return
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.logger(r).Error().Err(err).Str("session_id", view.ID).Msg("bundle failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=idphoto-%s.zip", view.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
