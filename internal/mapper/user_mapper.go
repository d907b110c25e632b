package mapper

import (
	"portfolio-commerce-be/internal/entity"
	"portfolio-commerce-be/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	return &entity.User{
		Id:                u.Id,
		Email:             u.Email,
		FullName:          u.FullName,
		Phone:             u.Phone,
		GatewayCustomerId: u.GatewayCustomerId,
		IsPremium:         u.IsPremium,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (m *UserMapper) ToModel(u *entity.User) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Id:                u.Id,
		Email:             u.Email,
		FullName:          u.FullName,
		Phone:             u.Phone,
		GatewayCustomerId: u.GatewayCustomerId,
		IsPremium:         u.IsPremium,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
