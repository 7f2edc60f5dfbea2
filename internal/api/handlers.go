/**
 * @description
 * This file contains the HTTP handlers for the wallet API. Handlers parse
 * incoming requests, call the application services, and translate service
 * errors into HTTP status codes. Monetary amounts cross the API boundary as
 * decimal strings and are converted to integer paise at the edge.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/SharathVaidya/Smartpay/internal/app"
	"github.com/SharathVaidya/Smartpay/internal/domain"
	"github.com/SharathVaidya/Smartpay/internal/store"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// WalletHandlers holds the application services that handlers will use.
type WalletHandlers struct {
	service    *app.Service
	otps       *app.OtpService
	statements *app.StatementJobs
	tokens     *TokenManager
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service, otps *app.OtpService, statements *app.StatementJobs, tokens *TokenManager) *WalletHandlers {
	return &WalletHandlers{service: service, otps: otps, statements: statements, tokens: tokens}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
}

// SignupHandler creates a new wallet account.
func (h *WalletHandlers) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		h.writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if !pinPattern.MatchString(req.PIN) {
		h.writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	err := h.service.Signup(r.Context(), app.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		PIN:      req.PIN,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			h.writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		if errors.Is(err, store.ErrEmailTaken) {
			h.writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		log.Printf("level=error component=api msg=\"signup failed\" username=%s err=%v", req.Username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "Signup successful"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler checks the password and issues a login OTP on success. The
// session token itself is only granted after OTP verification.
func (h *WalletHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.service.Authenticate(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		log.Printf("level=error component=api msg=\"login failed\" username=%s err=%v", req.Username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// An active verification lock blocks login outright; issuing here would
	// clear the lock and hand out a usable code mid-lockout.
	if err := h.otps.CheckLock(r.Context(), req.Username); err != nil {
		h.writeOtpError(w, req.Username, err)
		return
	}

	if err := h.otps.Issue(r.Context(), req.Username); err != nil {
		h.writeOtpError(w, req.Username, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to your registered email"})
}

type otpRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

// SendOtpHandler issues a fresh OTP for the user.
func (h *WalletHandlers) SendOtpHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.otps.Issue(r.Context(), req.Username); err != nil {
		h.writeOtpError(w, req.Username, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to your registered email"})
}

// VerifyOtpHandler checks the submitted OTP and, when it matches, issues a
// session token.
func (h *WalletHandlers) VerifyOtpHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.otps.Verify(r.Context(), req.Username, req.OTP); err != nil {
		h.writeOtpError(w, req.Username, err)
		return
	}

	token, err := h.tokens.Issue(req.Username)
	if err != nil {
		log.Printf("level=error component=api msg=\"session token issue failed\" username=%s err=%v", req.Username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"token":   token,
	})
}

func (h *WalletHandlers) writeOtpError(w http.ResponseWriter, username string, err error) {
	var locked *app.OtpLockedError
	var invalid *app.OtpInvalidError
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrOtpNotFound):
		h.writeError(w, http.StatusNotFound, "No OTP requested. Please request a new one.")
	case errors.Is(err, app.ErrOtpRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many OTP requests. Please try again later.")
	case errors.Is(err, app.ErrOtpExpired):
		h.writeError(w, http.StatusBadRequest, "OTP expired. Please request a new one.")
	case errors.Is(err, app.ErrOtpLockedOut):
		h.writeError(w, http.StatusForbidden, "Too many wrong attempts. Try again in 15 minutes.")
	case errors.As(err, &locked):
		h.writeError(w, http.StatusForbidden,
			fmt.Sprintf("Too many wrong attempts. Try again in %d minute(s).", locked.RemainingMinutes(time.Now())))
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid OTP. %d attempt(s) remaining.", invalid.AttemptsRemaining))
	default:
		log.Printf("level=error component=api msg=\"otp operation failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type transferRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Amount        string `json:"amount"`
	PIN           string `json:"pin"`
	Category      string `json:"category"`
	LatePayment   bool   `json:"latePayment"`
}

type transferResponse struct {
	Message  string `json:"message"`
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
	Location string `json:"location"`
	Time     string `json:"time"`
}

// TransferHandler handles peer-to-peer balance transfers.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amountPaise, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	receipt, err := h.service.Transfer(r.Context(), app.TransferInput{
		Sender:        username,
		ReceiverEmail: strings.TrimSpace(req.ReceiverEmail),
		AmountPaise:   amountPaise,
		PIN:           req.PIN,
		Category:      req.Category,
		LatePayment:   req.LatePayment,
		SourceIP:      clientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "Receiver not found")
		case errors.Is(err, app.ErrIncorrectPIN):
			h.writeError(w, http.StatusForbidden, "Incorrect PIN")
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusBadRequest, "Insufficient balance")
		case errors.Is(err, store.ErrMonthlyLimitExceeded):
			h.writeError(w, http.StatusForbidden, "Monthly spending limit exceeded")
		case errors.Is(err, store.ErrInvalidCategory):
			h.writeError(w, http.StatusBadRequest, "Invalid spending category")
		case errors.Is(err, store.ErrCategoryLimitExceeded):
			h.writeError(w, http.StatusForbidden, "Spending limit for this category exceeded")
		default:
			log.Printf("level=error component=api msg=\"transfer failed\" sender=%s err=%v", username, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, transferResponse{
		Message:  "Transfer successful",
		Receiver: receipt.Receiver,
		Amount:   domain.FormatAmount(receipt.AmountPaise),
		Location: receipt.Location,
		Time:     receipt.OccurredAt.Format(time.RFC3339),
	})
}

type addMoneyRequest struct {
	Amount string `json:"amount"`
}

// AddMoneyHandler credits the authenticated user's balance.
func (h *WalletHandlers) AddMoneyHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req addMoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amountPaise, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := h.service.AddMoney(r.Context(), username, amountPaise); err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrAddMoneyLimitExceeded):
			h.writeError(w, http.StatusForbidden, "Monthly add-money limit exceeded")
		default:
			log.Printf("level=error component=api msg=\"add money failed\" username=%s err=%v", username, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Money added successfully"})
}

type updateLimitsRequest struct {
	Limits map[string]string `json:"limits"`
}

// UpdateLimitsHandler replaces per-category spending ceilings.
func (h *WalletHandlers) UpdateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req updateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Limits) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one category limit is required")
		return
	}

	limits := make(map[string]int64, len(req.Limits))
	for category, value := range req.Limits {
		paise, err := domain.ParseAmount(value)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit for category %q", category))
			return
		}
		limits[category] = paise
	}

	if err := h.service.UpdateSpendingLimits(r.Context(), username, limits); err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrInvalidCategory):
			h.writeError(w, http.StatusBadRequest, "Invalid spending category")
		default:
			log.Printf("level=error component=api msg=\"update limits failed\" username=%s err=%v", username, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Spending limits updated"})
}

// RewardsHandler returns the reward tier for the user's trust score.
func (h *WalletHandlers) RewardsHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reward, err := h.service.Rewards(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"rewards lookup failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, reward)
}

type profileResponse struct {
	Username       string            `json:"username"`
	Email          string            `json:"email"`
	Balance        string            `json:"balance"`
	Score          int               `json:"score"`
	SpendingLimits map[string]string `json:"spendingLimits"`
	MonthlyAdded   string            `json:"monthlyAdded"`
	MonthlySpent   string            `json:"monthlySpent"`
}

// ProfileHandler returns the authenticated user's account snapshot.
func (h *WalletHandlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.Profile(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"profile lookup failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	limits := make(map[string]string, len(user.SpendingLimits))
	for category, paise := range user.SpendingLimits {
		limits[category] = domain.FormatAmount(paise)
	}

	h.writeJSON(w, http.StatusOK, profileResponse{
		Username:       user.Username,
		Email:          user.Email,
		Balance:        domain.FormatAmount(user.BalancePaise),
		Score:          user.Score,
		SpendingLimits: limits,
		MonthlyAdded:   domain.FormatAmount(user.MonthlyStats.AddedPaise),
		MonthlySpent:   domain.FormatAmount(user.MonthlyStats.SpentPaise),
	})
}

type historyEntryResponse struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	With     string `json:"with"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Category string `json:"category"`
}

// HistoryHandler returns the user's ledger entries, newest first.
func (h *WalletHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	entries, err := h.service.History(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"history lookup failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyEntryResponse{
			Type:     entry.Direction,
			Amount:   domain.FormatAmount(entry.AmountPaise),
			With:     entry.Counterparty,
			Time:     entry.OccurredAt.Format(time.RFC3339),
			Location: entry.Location,
			Category: entry.Category,
		})
	}

	h.writeJSON(w, http.StatusOK, out)
}

// NotificationsHandler returns the user's notification inbox.
func (h *WalletHandlers) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	notifications, err := h.service.Notifications(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"notifications lookup failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]map[string]string, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, map[string]string{
			"message": n.Message,
			"time":    n.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, out)
}

// ClearNotificationsHandler empties the user's notification inbox.
func (h *WalletHandlers) ClearNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.service.ClearNotifications(r.Context(), username); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"clear notifications failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Notifications cleared"})
}

// StatementHandler renders the user's transaction statement as a PDF download.
func (h *WalletHandlers) StatementHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := GetSessionUsername(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	entries, err := h.service.History(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api msg=\"statement lookup failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(entries) == 0 {
		h.writeError(w, http.StatusNotFound, "No transactions to report")
		return
	}

	pdf, err := h.statements.RenderStatement(username, entries)
	if err != nil {
		log.Printf("level=error component=api msg=\"statement render failed\" username=%s err=%v", username, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="smartpay-statement.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// clientIP extracts the originating IP, preferring X-Forwarded-For when the
// request came through a proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
