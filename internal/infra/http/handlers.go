package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tollgate/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type challengeResponse struct {
	RequiredAmount    uint64 `json:"required_amount"`
	RequiredRecipient string `json:"required_recipient"`
	ResourceID        string `json:"resource_id"`
	ChallengeNonce    string `json:"challenge_nonce"`
	IssuedAt          string `json:"issued_at"`
}

type proposalResponse struct {
	ProposalID    uint64            `json:"proposal_id"`
	Action        domain.Action     `json:"action"`
	Proposer      domain.Identity   `json:"proposer"`
	CreatedAt     string            `json:"created_at"`
	Confirmations []domain.Identity `json:"confirmations"`
	Executed      bool              `json:"executed"`
	ExecutedAt    string            `json:"executed_at,omitempty"`
	ExecutionErr  string            `json:"execution_error,omitempty"`
}

type submitResponse struct {
	ProposalID   uint64 `json:"proposal_id"`
	Executed     bool   `json:"executed"`
	ExecutionErr string `json:"execution_error,omitempty"`
}

const challengeCurrency = "USDC.base"

func (s *Server) handleContent(c *gin.Context) {
	request := domain.ContentRequest{
		ResourceID:       c.Param("resource"),
		ClaimantIdentity: c.GetHeader("X-Claimant-Identity"),
		PaymentReference: paymentReference(c),
		UserAgent:        c.GetHeader("User-Agent"),
		RemoteAddr:       c.ClientIP(),
	}

	outcome, err := s.gate.Handle(c.Request.Context(), request)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "not_found", Message: "resource not found"})
			return
		}
		// Internal trouble never surfaces governance or backend detail
		// to a crawler.
		s.logger.Errorw("content request failed", "resource", request.ResourceID, "error", err)
		c.JSON(http.StatusBadGateway, errorResponse{Code: "upstream_error", Message: "content temporarily unavailable"})
		return
	}

	switch outcome.Decision {
	case domain.DecisionAdmit:
		mediaType := outcome.MediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		c.Data(http.StatusOK, mediaType, outcome.Content)

	case domain.DecisionChallenge:
		challenge := outcome.Challenge
		c.Header("x402-price", strconv.FormatUint(challenge.RequiredAmount, 10))
		c.Header("x402-currency", challengeCurrency)
		c.Header("x402-recipient", challenge.RequiredRecipient)
		c.Header("x402-resource", challenge.ResourceID)
		c.Header("x402-nonce", challenge.ChallengeNonce)
		c.JSON(http.StatusPaymentRequired, challengeResponse{
			RequiredAmount:    challenge.RequiredAmount,
			RequiredRecipient: challenge.RequiredRecipient,
			ResourceID:        challenge.ResourceID,
			ChallengeNonce:    challenge.ChallengeNonce,
			IssuedAt:          challenge.IssuedAt.Format(time.RFC3339),
		})

	case domain.DecisionReject:
		c.JSON(http.StatusForbidden, errorResponse{
			Code:    string(outcome.Reason),
			Message: rejectMessage(outcome.Reason),
		})
	}
}

// paymentReference extracts the claimed settlement reference. Paying
// crawlers send Authorization: Bearer <tx>; the explicit header is the
// fallback for clients that reserve Authorization for their own auth.
func paymentReference(c *gin.Context) domain.PaymentReference {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return domain.PaymentReference(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	}
	return domain.PaymentReference(strings.TrimSpace(c.GetHeader("X-Payment-Reference")))
}

func rejectMessage(reason domain.RejectReason) string {
	switch reason {
	case domain.RejectReplayedPayment:
		return "payment reference has already been used"
	case domain.RejectPaymentMismatch:
		return "payment amount or recipient does not match the required price"
	default:
		return "payment rejected"
	}
}

func (s *Server) handleSubmitProposal(c *gin.Context) {
	approver, body, ok := s.requireApproverSignature(c)
	if !ok {
		return
	}
	var action domain.Action
	if err := json.Unmarshal(body, &action); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_action", Message: err.Error()})
		return
	}

	id, err := s.registry.Submit(c.Request.Context(), approver, action)
	if err != nil && !errors.Is(err, domain.ErrActionExecutionFailed) {
		s.governanceError(c, err)
		return
	}
	s.respondProposalState(c, id, err)
}

func (s *Server) handleConfirmProposal(c *gin.Context) {
	approver, _, ok := s.requireApproverSignature(c)
	if !ok {
		return
	}
	id, ok := proposalID(c)
	if !ok {
		return
	}

	err := s.registry.Confirm(c.Request.Context(), id, approver)
	if err != nil && !errors.Is(err, domain.ErrActionExecutionFailed) {
		s.governanceError(c, err)
		return
	}
	s.respondProposalState(c, id, err)
}

func (s *Server) handleRevokeProposal(c *gin.Context) {
	approver, _, ok := s.requireApproverSignature(c)
	if !ok {
		return
	}
	id, ok := proposalID(c)
	if !ok {
		return
	}

	if err := s.registry.Revoke(c.Request.Context(), id, approver); err != nil {
		s.governanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal_id": id, "revoked": true})
}

func (s *Server) handleGetProposal(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	id, ok := proposalID(c)
	if !ok {
		return
	}
	proposal, err := s.registry.Proposal(c.Request.Context(), id)
	if err != nil {
		s.governanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposalToResponse(proposal))
}

func (s *Server) handleListPending(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	pending, err := s.registry.Pending(c.Request.Context())
	if err != nil {
		s.governanceError(c, err)
		return
	}
	out := make([]proposalResponse, 0, len(pending))
	for _, proposal := range pending {
		out = append(out, proposalToResponse(proposal))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": out})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	if !s.requireAdminKey(c) {
		return
	}
	cfg := s.registry.Config()
	approvers := make([]domain.Identity, 0, len(cfg.Approvers))
	for id := range cfg.Approvers {
		approvers = append(approvers, id)
	}
	sortIdentities(approvers)
	c.JSON(http.StatusOK, gin.H{"threshold": cfg.Threshold, "approvers": approvers})
}

// respondProposalState reports the definitive post-call state. A failed
// privileged action is still an executed proposal; the failure rides
// along instead of masquerading as a retryable call error.
func (s *Server) respondProposalState(c *gin.Context, id uint64, execErr error) {
	proposal, err := s.registry.Proposal(c.Request.Context(), id)
	if err != nil {
		s.governanceError(c, err)
		return
	}
	resp := submitResponse{
		ProposalID: id,
		Executed:   proposal.Executed,
	}
	if execErr != nil {
		resp.ExecutionErr = proposal.ExecutionErr
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) governanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, errorResponse{Code: "unauthorized", Message: "caller is not an active approver"})
	case errors.Is(err, domain.ErrUnknownProposal):
		c.JSON(http.StatusNotFound, errorResponse{Code: "unknown_proposal", Message: "no such proposal"})
	case errors.Is(err, domain.ErrAlreadyExecuted):
		c.JSON(http.StatusConflict, errorResponse{Code: "already_executed", Message: "proposal has already executed"})
	case errors.Is(err, domain.ErrDuplicateConfirmation):
		c.JSON(http.StatusConflict, errorResponse{Code: "duplicate_confirmation", Message: "approver has already confirmed"})
	case errors.Is(err, domain.ErrNotConfirmed):
		c.JSON(http.StatusConflict, errorResponse{Code: "not_confirmed", Message: "approver has no confirmation to revoke"})
	case errors.Is(err, domain.ErrInvalidThreshold):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_threshold", Message: "threshold must be between 1 and the approver count"})
	default:
		s.logger.Errorw("governance call failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal", Message: "internal error"})
	}
}

func proposalID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_proposal_id", Message: "proposal id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func proposalToResponse(proposal domain.Proposal) proposalResponse {
	confirmations := make([]domain.Identity, 0, len(proposal.Confirmations))
	for id := range proposal.Confirmations {
		confirmations = append(confirmations, id)
	}
	sortIdentities(confirmations)
	resp := proposalResponse{
		ProposalID:    proposal.ID,
		Action:        proposal.Action,
		Proposer:      proposal.Proposer,
		CreatedAt:     proposal.CreatedAt.Format(time.RFC3339),
		Confirmations: confirmations,
		Executed:      proposal.Executed,
		ExecutionErr:  proposal.ExecutionErr,
	}
	if proposal.ExecutedAt != nil {
		resp.ExecutedAt = proposal.ExecutedAt.Format(time.RFC3339)
	}
	return resp
}

func sortIdentities(identities []domain.Identity) {
	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })
}
