package services

import (
	"context"
	"strings"
	"time"

	"mesa/internal/models"
	"mesa/internal/repository"
	apperrors "mesa/pkg/errors"
	"mesa/pkg/logger"

	"github.com/sirupsen/logrus"
)

// RestaurantService 餐厅（租户）注册与资料维护
type RestaurantService struct {
	repos       *repository.Repositories
	defaultPlan string
	now         func() time.Time
}

func NewRestaurantService(repos *repository.Repositories, defaultPlan string, now func() time.Time) *RestaurantService {
	if now == nil {
		now = time.Now
	}
	return &RestaurantService{repos: repos, defaultPlan: defaultPlan, now: now}
}

// SignupInput 注册参数
type SignupInput struct {
	RestaurantName  string
	RestaurantCode  string
	RestaurantEmail string
	OwnerName       string
	Username        string
	Password        string
	PlanSlug        string
}

// SignupResult 注册结果
type SignupResult struct {
	Restaurant   *models.Restaurant   `json:"restaurant"`
	Owner        *models.User         `json:"owner"`
	Subscription *models.Subscription `json:"subscription"`
}

// Signup 创建餐厅、所有者账号、所有者角色分配和试用订阅，全部在一个事务内完成
func (s *RestaurantService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	input.RestaurantName = strings.TrimSpace(input.RestaurantName)
	input.RestaurantCode = strings.TrimSpace(strings.ToLower(input.RestaurantCode))
	input.RestaurantEmail = strings.TrimSpace(strings.ToLower(input.RestaurantEmail))
	input.OwnerName = strings.TrimSpace(input.OwnerName)
	input.Username = strings.TrimSpace(input.Username)
	if input.PlanSlug == "" {
		input.PlanSlug = s.defaultPlan
	}

	fields := ValidateUserFields(input.Username, input.RestaurantEmail, input.Password, input.OwnerName)
	if !valid(input.RestaurantName, ruleName) {
		fields["restaurant_name"] = "餐厅名称长度必须在2-100个字符之间"
	}
	if !valid(input.RestaurantCode, ruleRestaurantCode) {
		fields["restaurant_code"] = "餐厅编码只能包含小写字母、数字、下划线和中划线，长度2-50"
	}
	if msg, ok := fields["name"]; ok {
		delete(fields, "name")
		fields["owner_name"] = msg
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	result := &SignupResult{}
	now := s.now()

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Restaurants.FindByCode(ctx, input.RestaurantCode); err == nil {
			return apperrors.ValidationField("restaurant_code", "餐厅编码已存在")
		} else if !isNotFound(err) {
			return err
		}
		if _, err := tx.Users.FindByUsername(ctx, input.Username); err == nil {
			return apperrors.ValidationField("username", "用户名已存在")
		} else if !isNotFound(err) {
			return err
		}

		plan, err := activePlan(ctx, tx, input.PlanSlug)
		if err != nil {
			return err
		}
		ownerRole, err := tx.Roles.FindBySlug(ctx, nil, models.RoleOwner)
		if err != nil {
			if isNotFound(err) {
				return apperrors.Internal("系统角色未初始化", err)
			}
			return err
		}

		restaurant := &models.Restaurant{
			Name:     input.RestaurantName,
			Code:     input.RestaurantCode,
			Email:    input.RestaurantEmail,
			IsActive: true,
		}
		if err := tx.Restaurants.Create(ctx, restaurant); err != nil {
			return err
		}

		owner := &models.User{
			RestaurantID: restaurant.ID,
			Username:     input.Username,
			Email:        input.RestaurantEmail,
			Name:         input.OwnerName,
			IsActive:     true,
		}
		owner.SetCustomPermissions(models.NewPermissionSet())
		if err := owner.SetPassword(input.Password); err != nil {
			return err
		}
		if err := tx.Users.Create(ctx, owner); err != nil {
			return err
		}

		err = tx.UserRoles.Create(ctx, &models.UserRole{
			UserID:     owner.ID,
			RoleID:     ownerRole.ID,
			AssignedBy: owner.ID,
			AssignedAt: now,
			IsActive:   true,
		})
		if err != nil {
			return err
		}

		sub := newTrialSubscription(restaurant.ID, plan, now)
		if err := tx.Subscriptions.Create(ctx, sub); err != nil {
			return err
		}

		result.Restaurant = restaurant
		result.Owner = owner
		result.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "注册餐厅失败")
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"restaurant_id": result.Restaurant.ID,
		"code":          result.Restaurant.Code,
		"plan":          input.PlanSlug,
	}).Info("新餐厅注册")
	return result, nil
}

func (s *RestaurantService) Get(ctx context.Context, restaurantID uint) (*models.Restaurant, error) {
	restaurant, err := s.repos.Restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, lookupError(err, "餐厅不存在")
	}
	return restaurant, nil
}

// Update 修改餐厅名称和联系邮箱，编码不可修改
func (s *RestaurantService) Update(ctx context.Context, restaurantID uint, name, email *string) (*models.Restaurant, error) {
	restaurant, err := s.Get(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if name != nil {
		v := strings.TrimSpace(*name)
		if !valid(v, ruleName) {
			fields["name"] = "餐厅名称长度必须在2-100个字符之间"
		} else {
			restaurant.Name = v
		}
	}
	if email != nil {
		v := strings.TrimSpace(strings.ToLower(*email))
		if !ValidateEmail(v) {
			fields["email"] = "邮箱格式不正确"
		} else {
			restaurant.Email = v
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.ValidationFields(fields)
	}

	if err := s.repos.Restaurants.Update(ctx, restaurant); err != nil {
		return nil, apperrors.Internal("更新餐厅信息失败", err)
	}
	return restaurant, nil
}
