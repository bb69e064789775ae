package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"nft-exchange/internal/db"
	"nft-exchange/internal/engine"
	"nft-exchange/internal/model"
	"nft-exchange/internal/wallet"
	"nft-exchange/internal/ws"
)

type Server struct {
	store  *db.Store
	engine *engine.Engine
	hub    *ws.Hub
	secret []byte
}

func NewServer(store *db.Store, eng *engine.Engine, hub *ws.Hub, secret string) *Server {
	return &Server{store: store, engine: eng, hub: hub, secret: []byte(secret)}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	// Health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})

	// Auth (public)
	r.Post("/api/register", s.register)
	r.Post("/api/login", s.login)

	// WebSocket
	r.Get("/ws", s.hub.HandleWS)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Wallet & internal funds
		r.Get("/api/wallet", s.getWallet)
		r.Post("/api/funds/withdraw", s.withdrawFunds)

		// Collections & tokens
		r.Post("/api/collections", s.createCollection)
		r.Get("/api/collections", s.listCollections)
		r.Post("/api/collections/{addr}/mint", s.mint)
		r.Post("/api/collections/{addr}/tokens/{id}/approve", s.approve)
		r.Post("/api/collections/{addr}/operators", s.setOperator)
		r.Get("/api/collections/{addr}/tokens/{id}", s.tokenInfo)
		r.Get("/api/collections/{addr}/tokens/{id}/key", s.assetKey)

		// Permits
		r.Post("/api/permits", s.signPermit)

		// Listings
		r.Post("/api/listings", s.createListing)
		r.Get("/api/listings", s.listListings)
		r.Get("/api/listings/{addr}/{id}", s.getListing)
		r.Patch("/api/listings/{addr}/{id}/price", s.updateListingPrice)
		r.Delete("/api/listings/{addr}/{id}", s.cancelListing)
		r.Post("/api/listings/{addr}/{id}/purchase", s.purchase)

		// Auctions
		r.Post("/api/auctions", s.createAuction)
		r.Get("/api/auctions", s.listAuctions)
		r.Get("/api/auctions/{addr}/{id}", s.getAuction)
		r.Post("/api/auctions/{addr}/{id}/bids", s.bid)
		r.Delete("/api/auctions/{addr}/{id}", s.cancelAuction)
		r.Post("/api/auctions/{addr}/{id}/end", s.endAuction)
		r.Post("/api/auctions/{addr}/{id}/bids/withdraw", s.withdrawBid)

		// Offers
		r.Post("/api/offers", s.createOffer)
		r.Get("/api/offers/{addr}/{id}", s.listOffers)
		r.Delete("/api/offers/{addr}/{id}", s.cancelOffer)
		r.Post("/api/offers/accept", s.acceptOffer)
		r.Post("/api/offers/accept-with-permit", s.acceptOfferWithPermit)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/api/admin/deposit", s.adminDeposit)
			r.Get("/api/admin/users", s.listUsers)
			r.Get("/api/admin/events", s.listEvents)
			r.Get("/api/admin/metrics", s.metrics)
		})
	})

	return r
}

// ── Auth ─────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		jsonErr(w, 400, "email and password (min 6 chars) required")
		return
	}

	existing, _ := s.store.GetUserByEmail(r.Context(), req.Email)
	if existing != nil {
		jsonErr(w, 409, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, 500, "hash failed")
		return
	}

	// Custodial account: the server keeps the key so it can sign
	// permits on the user's behalf.
	wlt, err := wallet.New()
	if err != nil {
		jsonErr(w, 500, "keygen failed")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, string(hash), wlt.Address(), wlt.Hex(), model.RoleUser)
	if err != nil {
		jsonErr(w, 500, "create user failed: "+err.Error())
		return
	}
	if err := s.store.CreateWallet(r.Context(), user.Address); err != nil {
		jsonErr(w, 500, "create wallet failed")
		return
	}

	token := s.makeToken(user)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil {
		jsonErr(w, 401, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		jsonErr(w, 401, "invalid credentials")
		return
	}

	token := s.makeToken(user)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) makeToken(u *model.User) string {
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"addr": string(u.Address),
		"role": string(u.Role),
		"exp":  time.Now().Add(72 * time.Hour).Unix(),
	}
	t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return t
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxAddr   ctxKey = "addr"
	ctxRole   ctxKey = "role"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonErr(w, 401, "missing token")
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			jsonErr(w, 401, "invalid token")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonErr(w, 401, "invalid claims")
			return
		}
		userID, _ := claims["sub"].(string)
		addr, _ := claims["addr"].(string)
		role, _ := claims["role"].(string)
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxAddr, model.Address(addr))
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxRole).(string)
		if role != string(model.RoleAdmin) {
			jsonErr(w, 403, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerAddr(r *http.Request) model.Address {
	addr, _ := r.Context().Value(ctxAddr).(model.Address)
	return addr
}

// assetParams pulls the collection address and token id out of the URL.
func assetParams(w http.ResponseWriter, r *http.Request) (model.Address, uint64, bool) {
	addr := model.Address(strings.ToLower(chi.URLParam(r, "addr")))
	if !addr.Valid() {
		jsonErr(w, 400, "invalid collection address")
		return "", 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonErr(w, 400, "invalid token id")
		return "", 0, false
	}
	return addr, id, true
}

// ── Wallet & Funds ───────────────────────────────────

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	addr := callerAddr(r)
	wlt, err := s.store.GetWallet(r.Context(), addr)
	if err != nil || wlt == nil {
		jsonErr(w, 404, "wallet not found")
		return
	}
	json200(w, map[string]any{
		"address":     addr,
		"balance_wei": wlt.Balance.String(),
		"funds_wei":   s.engine.Funds(addr).String(),
	})
}

func (s *Server) withdrawFunds(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.WithdrawFunds(callerAddr(r)); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "withdrawn"})
}

// ── Collections ──────────────────────────────────────

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	if req.Name == "" || req.Symbol == "" {
		jsonErr(w, 400, "name and symbol required")
		return
	}
	addr, err := s.engine.CreateCollection(req.Name, req.Symbol)
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(map[string]any{"address": addr, "name": req.Name, "symbol": req.Symbol})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListCollections(r.Context())
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	if rows == nil {
		rows = []db.CollectionRow{}
	}
	json200(w, rows)
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	collection := model.Address(strings.ToLower(chi.URLParam(r, "addr")))
	var req model.MintReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	to := req.To
	if to == "" {
		to = callerAddr(r)
	}
	tokenID, err := s.engine.Mint(collection, to, req.URI)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(map[string]any{"token_id": tokenID, "owner": to})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	var req model.ApproveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	// Empty target means "approve the exchange", the common case.
	approved := req.Approved
	if approved == "" {
		approved = s.engine.Exchange()
	}
	if err := s.engine.Approve(callerAddr(r), collection, tokenID, approved); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]any{"approved": approved})
}

func (s *Server) setOperator(w http.ResponseWriter, r *http.Request) {
	collection := model.Address(strings.ToLower(chi.URLParam(r, "addr")))
	var req model.OperatorReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	operator := req.Operator
	if operator == "" {
		operator = s.engine.Exchange()
	}
	if err := s.engine.SetApprovalForAll(callerAddr(r), collection, operator, req.Approved); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]any{"operator": operator, "approved": req.Approved})
}

func (s *Server) tokenInfo(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	info, err := s.engine.TokenInfo(collection, tokenID)
	if err != nil {
		jsonErr(w, 404, err.Error())
		return
	}
	json200(w, info)
}

func (s *Server) assetKey(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	key, err := model.AssetKeyFor(collection, tokenID)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"asset_key": string(key)})
}

// ── Permits ──────────────────────────────────────────

// signPermit signs a permit digest with the caller's custodial key.
// The default spender is the exchange, which is what the
// accept-with-permit flow needs.
func (s *Server) signPermit(w http.ResponseWriter, r *http.Request) {
	var req model.PermitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	spender := req.Spender
	if spender == "" {
		spender = s.engine.Exchange()
	}
	digest, err := s.engine.PermitDigest(req.NFT, spender, req.TokenID, req.Deadline)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	uid, _ := r.Context().Value(ctxUserID).(string)
	user, err := s.store.GetUser(r.Context(), uid)
	if err != nil || user == nil {
		jsonErr(w, 401, "unknown user")
		return
	}
	wlt, err := wallet.FromHex(user.SigningKey)
	if err != nil {
		jsonErr(w, 500, "bad signing key")
		return
	}
	sig, err := wlt.SignDigest(digest)
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	json200(w, map[string]string{
		"signature": "0x" + hex.EncodeToString(sig),
		"spender":   string(spender),
	})
}

// ── Listings ─────────────────────────────────────────

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	var req model.CreateListingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	price, err := model.ParseWei(req.PriceWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	if err := s.engine.CreateListing(callerAddr(r), req.NFT, req.TokenID, price, req.StartTimestamp, req.EndTimestamp); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	lst, _ := s.engine.GetListing(req.NFT, req.TokenID)
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(lst)
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	json200(w, s.engine.Listings())
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	lst, found := s.engine.GetListing(collection, tokenID)
	if !found {
		jsonErr(w, 404, "listing not found")
		return
	}
	json200(w, lst)
}

func (s *Server) updateListingPrice(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	var req model.UpdatePriceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	price, err := model.ParseWei(req.PriceWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	if err := s.engine.UpdateListingPrice(callerAddr(r), collection, tokenID, price); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	lst, _ := s.engine.GetListing(collection, tokenID)
	json200(w, lst)
}

func (s *Server) cancelListing(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelListing(callerAddr(r), collection, tokenID); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	var req model.ValueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	value, err := model.ParseWei(req.ValueWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	if err := s.engine.Purchase(callerAddr(r), collection, tokenID, value); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "purchased"})
}

// ── Auctions ─────────────────────────────────────────

func (s *Server) createAuction(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAuctionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	floor, err := model.ParseWei(req.FloorPriceWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	if err := s.engine.CreateAuction(callerAddr(r), req.NFT, req.TokenID, floor, req.StartTimestamp, req.EndTimestamp); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	a, _ := s.engine.GetAuction(req.NFT, req.TokenID)
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(a)
}

func (s *Server) listAuctions(w http.ResponseWriter, r *http.Request) {
	json200(w, s.engine.Auctions())
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	a, found := s.engine.GetAuction(collection, tokenID)
	if !found {
		jsonErr(w, 404, "auction not found")
		return
	}
	json200(w, a)
}

func (s *Server) bid(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	var req model.ValueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	value, err := model.ParseWei(req.ValueWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	caller := callerAddr(r)
	if err := s.engine.Bid(caller, collection, tokenID, value); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{
		"status":  "bid placed",
		"bid_wei": s.engine.BidOf(collection, tokenID, caller).String(),
	})
}

func (s *Server) cancelAuction(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelAuction(callerAddr(r), collection, tokenID); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

func (s *Server) endAuction(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	if err := s.engine.EndAuction(callerAddr(r), collection, tokenID); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	a, _ := s.engine.GetAuction(collection, tokenID)
	json200(w, a)
}

func (s *Server) withdrawBid(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	if err := s.engine.WithdrawBid(callerAddr(r), collection, tokenID); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "withdrawn"})
}

// ── Offers ───────────────────────────────────────────

func (s *Server) createOffer(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOfferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	value, err := model.ParseWei(req.ValueWei)
	if err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	if err := s.engine.CreateOffer(callerAddr(r), req.NFT, req.TokenID, value); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(map[string]string{"status": "offer placed"})
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	offers := s.engine.OffersFor(collection, tokenID)
	if offers == nil {
		offers = []model.Offer{}
	}
	json200(w, offers)
}

func (s *Server) cancelOffer(w http.ResponseWriter, r *http.Request) {
	collection, tokenID, ok := assetParams(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelOffer(callerAddr(r), collection, tokenID); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

func (s *Server) acceptOffer(w http.ResponseWriter, r *http.Request) {
	var req model.AcceptOfferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	if err := s.engine.AcceptOffer(callerAddr(r), req.NFT, req.TokenID, req.Buyer); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "accepted"})
}

func (s *Server) acceptOfferWithPermit(w http.ResponseWriter, r *http.Request) {
	var req model.AcceptOfferWithPermitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		jsonErr(w, 400, "invalid signature encoding")
		return
	}
	if err := s.engine.AcceptOfferWithPermit(callerAddr(r), req.NFT, req.TokenID, req.Buyer, req.Deadline, sig); err != nil {
		jsonErr(w, 400, err.Error())
		return
	}
	json200(w, map[string]string{"status": "accepted"})
}

// ── Admin ────────────────────────────────────────────

func (s *Server) adminDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address model.Address `json:"address"`
		Wei     string        `json:"wei"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json")
		return
	}
	amount, err := model.ParseWei(req.Wei)
	if err != nil || amount.Sign() == 0 {
		jsonErr(w, 400, "wei > 0 required")
		return
	}
	if !req.Address.Valid() {
		jsonErr(w, 400, "valid address required")
		return
	}
	wlt, err := s.store.Deposit(r.Context(), req.Address, amount)
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	json200(w, map[string]string{
		"address":     string(wlt.Address),
		"balance_wei": wlt.Balance.String(),
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	if users == nil {
		users = []model.User{}
	}
	json200(w, users)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 100
	if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	assetKey := r.URL.Query().Get("asset_key")
	var kp *string
	if assetKey != "" {
		kp = &assetKey
	}
	events, err := s.store.ListEvents(r.Context(), kp, limit)
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	if events == nil {
		events = []model.EventLog{}
	}
	json200(w, events)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, _ := s.store.ListUsers(ctx)
	collections, _ := s.store.ListCollections(ctx)
	purchases, _ := s.store.CountEvents(ctx, "purchase")
	stats := s.engine.Stats()

	json200(w, map[string]any{
		"total_users":       len(users),
		"total_collections": len(collections),
		"listings_total":    stats.ListingsTotal,
		"auctions_total":    stats.AuctionsTotal,
		"purchases_total":   purchases,
		"fee_funds_wei":     stats.FeeFundsWei,
	})
}

// ── Helpers ──────────────────────────────────────────

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
