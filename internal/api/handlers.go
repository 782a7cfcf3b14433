package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/anthropics/session-webhook-bridge/internal/domain"
)

// --- Response shapes ---

type statusResponse struct {
	OK        bool    `json:"ok"`
	SessionID string  `json:"sessionId"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

type sendResponse struct {
	Success         bool   `json:"success"`
	MessageHash     string `json:"messageHash"`
	SyncMessageHash string `json:"syncMessageHash"`
	Timestamp       int64  `json:"timestamp"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Shared handler plumbing ---

// decode parses the JSON body into req. On failure it writes the 400
// envelope and reports false; the messenger is never called.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	return true
}

// validate runs a request's field rules, writing the 400 envelope on failure.
func (s *Server) validate(w http.ResponseWriter, req validation.Validatable) bool {
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

// messengerError maps a failed client call to the 500 envelope. The request
// is not retried; the error text is surfaced as-is (no stack traces).
func (s *Server) messengerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("messenger call failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	message := err.Error()
	if message == "" {
		message = "Internal Server Error"
	}
	s.writeError(w, http.StatusInternalServerError, "Internal Server Error", message)
}

// --- Health ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		OK:        true,
		SessionID: s.messenger.SessionID(),
		Uptime:    time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Messages ---

type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (req sendMessageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Text, validation.Required),
	)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	res, err := s.messenger.SendMessage(r.Context(), req.To, req.Text)
	if err != nil {
		s.messengerError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sendResponse{
		Success:         true,
		MessageHash:     res.MessageHash,
		SyncMessageHash: res.SyncMessageHash,
		Timestamp:       res.Timestamp,
	})
}

type sendAttachmentRequest struct {
	To       string `json:"to"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (req sendAttachmentRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Filename, validation.Required),
		validation.Field(&req.MimeType, validation.Required),
		validation.Field(&req.Data, validation.Required),
	)
}

func (s *Server) handleSendAttachment(w http.ResponseWriter, r *http.Request) {
	var req sendAttachmentRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "data: must be valid base64")
		return
	}

	att := domain.Attachment{
		Filename: req.Filename,
		MimeType: req.MimeType,
		Data:     data,
	}
	res, err := s.messenger.SendAttachment(r.Context(), req.To, req.Text, att)
	if err != nil {
		s.messengerError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sendResponse{
		Success:         true,
		MessageHash:     res.MessageHash,
		SyncMessageHash: res.SyncMessageHash,
		Timestamp:       res.Timestamp,
	})
}

type deleteMessageRequest struct {
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
}

func (req deleteMessageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Timestamp, validation.Required),
		validation.Field(&req.Hash, validation.Required),
	)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.DeleteMessage(r.Context(), req.To, req.Timestamp, req.Hash); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Message deleted"})
}

// --- Profile ---

type setDisplayNameRequest struct {
	DisplayName string `json:"displayName"`
}

func (req setDisplayNameRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.DisplayName, validation.Required),
	)
}

func (s *Server) handleSetDisplayName(w http.ResponseWriter, r *http.Request) {
	var req setDisplayNameRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.SetDisplayName(r.Context(), req.DisplayName); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Display name updated"})
}

type setAvatarRequest struct {
	Avatar string `json:"avatar"`
}

func (req setAvatarRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Avatar, validation.Required),
	)
}

func (s *Server) handleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var req setAvatarRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	avatar, err := base64.StdEncoding.DecodeString(req.Avatar)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "avatar: must be valid base64")
		return
	}

	if err := s.messenger.SetAvatar(r.Context(), avatar); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Avatar updated"})
}

// --- Notifications ---

type notifyScreenshotRequest struct {
	To string `json:"to"`
}

func (req notifyScreenshotRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
	)
}

func (s *Server) handleNotifyScreenshot(w http.ResponseWriter, r *http.Request) {
	var req notifyScreenshotRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.NotifyScreenshot(r.Context(), req.To); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Screenshot notification sent"})
}

type notifyMediaSavedRequest struct {
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
}

func (req notifyMediaSavedRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Timestamp, validation.Required),
	)
}

func (s *Server) handleNotifyMediaSaved(w http.ResponseWriter, r *http.Request) {
	var req notifyMediaSavedRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.NotifyMediaSaved(r.Context(), req.To, req.Timestamp); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Media saved notification sent"})
}

// --- Reactions ---

type reactionRequest struct {
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
	Emoji     string `json:"emoji"`
	Author    string `json:"author"`
}

func (req reactionRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.Timestamp, validation.Required),
		validation.Field(&req.Emoji, validation.Required),
		validation.Field(&req.Author, validation.Required),
	)
}

func (req reactionRequest) reaction() domain.Reaction {
	return domain.Reaction{
		To:        req.To,
		Timestamp: req.Timestamp,
		Emoji:     req.Emoji,
		Author:    req.Author,
	}
}

func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.AddReaction(r.Context(), req.reaction()); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Reaction added"})
}

func (s *Server) handleRemoveReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if !s.decode(w, r, &req) || !s.validate(w, req) {
		return
	}

	if err := s.messenger.RemoveReaction(r.Context(), req.reaction()); err != nil {
		s.messengerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Reaction removed"})
}
