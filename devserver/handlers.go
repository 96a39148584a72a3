package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hauswerk/go-admin-auth/apiclient"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apiclient.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	record, ok := s.store.Authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	switch record.Mode {
	case ModePush:
		requestID := s.store.CreatePush(record.User.Email)
		s.log.Info().Str("user", record.User.Email).Str("request_id", requestID).Msg("push challenge created")
		writeJSON(w, http.StatusOK, apiclient.LoginResponse{
			RequiresTwoFactor:   true,
			UsePushNotification: true,
			RequestID:           requestID,
		})

	case ModeEmail:
		code, err := s.store.IssueCode(record.User.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not issue code")
			return
		}
		if err := s.sender.SendCode(record.User.Email, code); err != nil {
			s.log.Error().Err(err).Str("user", record.User.Email).Msg("code delivery failed")
			writeError(w, http.StatusInternalServerError, "could not deliver code")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.LoginResponse{RequiresTwoFactor: true})

	default:
		token, err := s.issueToken(record.User)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		user := record.User
		writeJSON(w, http.StatusOK, apiclient.LoginResponse{AccessToken: token, User: &user})
	}
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req apiclient.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	record, ok := s.store.Lookup(req.Email)
	if !ok || !s.store.ConsumeCode(req.Email, req.Code) {
		writeError(w, http.StatusBadRequest, "invalid or expired code")
		return
	}

	token, err := s.issueToken(record.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	user := record.User
	writeJSON(w, http.StatusOK, apiclient.VerifyCodeResponse{AccessToken: token, User: &user})
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	var req apiclient.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	status, email, ok := s.store.PushStatus(req.RequestID)
	if !ok || email != req.Email {
		writeError(w, http.StatusNotFound, "unknown challenge")
		return
	}

	resp := apiclient.StatusResponse{Status: status}
	if status == apiclient.ApprovalApproved {
		record, ok := s.store.Lookup(email)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		token, err := s.issueToken(record.User)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		user := record.User
		resp.AccessToken = token
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResendCode(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	record, ok := s.store.Lookup(req.Email)
	if !ok || record.Mode != ModeEmail {
		writeError(w, http.StatusBadRequest, "no code challenge for this user")
		return
	}

	code, err := s.store.IssueCode(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue code")
		return
	}
	if err := s.sender.SendCode(req.Email, code); err != nil {
		s.log.Error().Err(err).Str("user", req.Email).Msg("code delivery failed")
		writeError(w, http.StatusInternalServerError, "could not deliver code")
		return
	}
	writeJSON(w, http.StatusOK, apiclient.ResendResponse{Message: "a new code has been sent"})
}

// handleResolve backs the admin approve/reject endpoints that stand in for
// the registered device.
func (s *Server) handleResolve(approve bool) http.HandlerFunc {
	status := apiclient.ApprovalRejected
	if approve {
		status = apiclient.ApprovalApproved
	}

	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		if !s.store.ResolvePush(requestID, status) {
			writeError(w, http.StatusNotFound, "unknown or already resolved challenge")
			return
		}
		s.log.Info().Str("request_id", requestID).Str("status", string(status)).Msg("push challenge resolved")
		writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
