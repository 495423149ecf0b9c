package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/ImageForge/internal/identity"
	"github.com/digkill/ImageForge/internal/models"
)

const userListPageSize = 1000

// OrderRequest is the admin orders filter. Zero values take the defaults.
type OrderRequest struct {
	Page         int    `json:"page" validate:"omitempty,min=1"`
	Limit        int    `json:"limit" validate:"omitempty,min=1,max=100"`
	Search       string `json:"search"`
	SortBy       string `json:"sortBy"`
	SortOrder    string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	StatusFilter string `json:"statusFilter"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrdersPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

type OrderService struct {
	log           *slog.Logger
	identity      IdentityProvider
	subscriptions SubscriptionStore
}

func NewOrderService(log *slog.Logger, idp IdentityProvider, subscriptions SubscriptionStore) *OrderService {
	if log == nil {
		log = slog.Default()
	}
	return &OrderService{log: log, identity: idp, subscriptions: subscriptions}
}

func (s *OrderService) List(ctx context.Context, req OrderRequest) (*OrdersPage, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.SortBy == "" {
		req.SortBy = "created"
	}

	q := models.OrderQuery{
		Page:         req.Page,
		Limit:        req.Limit,
		SortBy:       req.SortBy,
		Ascending:    req.SortOrder == "asc",
		StatusFilter: req.StatusFilter,
	}

	var users []identity.User
	usersLoaded := false
	if req.Search != "" {
		list, err := s.identity.AdminListUsers(ctx, 1, userListPageSize)
		if err != nil {
			s.log.Warn("user search failed, listing without email filter", "err", err)
		} else {
			users, usersLoaded = list, true
			needle := strings.ToLower(req.Search)
			for _, u := range list {
				if strings.Contains(strings.ToLower(u.Email), needle) {
					q.UserIDs = append(q.UserIDs, u.ID)
				}
			}
			if len(q.UserIDs) == 0 {
				return &OrdersPage{
					Orders:     []models.Order{},
					Pagination: Pagination{Page: req.Page, Limit: req.Limit},
				}, nil
			}
		}
	}

	orders, total, err := s.subscriptions.ListOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if !usersLoaded && len(orders) > 0 {
		list, err := s.identity.AdminListUsers(ctx, 1, userListPageSize)
		if err != nil {
			s.log.Warn("failed to load user emails", "err", err)
		}
		users = list
	}
	emails := make(map[string]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}
	for i := range orders {
		orders[i].UserEmail = emails[orders[i].UserID]
		if orders[i].UserEmail == "" {
			orders[i].UserEmail = "Unknown"
		}
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &OrdersPage{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: (total + req.Limit - 1) / req.Limit,
		},
	}, nil
}
