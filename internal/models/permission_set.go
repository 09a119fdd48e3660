package models

import (
	"encoding/json"
	"sort"
)

// PermissionSet 权限标识集合，如 {"users.create", "orders.view"}
type PermissionSet map[string]struct{}

// NewPermissionSet 由权限标识创建集合，空字符串忽略
func NewPermissionSet(slugs ...string) PermissionSet {
	s := make(PermissionSet, len(slugs))
	s.Add(slugs...)
	return s
}

// Add 添加权限
func (s PermissionSet) Add(slugs ...string) {
	for _, slug := range slugs {
		if slug != "" {
			s[slug] = struct{}{}
		}
	}
}

// Remove 移除权限
func (s PermissionSet) Remove(slugs ...string) {
	for _, slug := range slugs {
		delete(s, slug)
	}
}

// Has 是否包含权限，nil集合不包含任何权限
func (s PermissionSet) Has(slug string) bool {
	_, ok := s[slug]
	return ok
}

// Merge 并入另一个集合
func (s PermissionSet) Merge(other PermissionSet) {
	for slug := range other {
		s[slug] = struct{}{}
	}
}

// Len 权限数量
func (s PermissionSet) Len() int {
	return len(s)
}

// Equal 两个集合元素完全相同
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for slug := range s {
		if !other.Has(slug) {
			return false
		}
	}
	return true
}

// Slice 排序后的权限列表
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for slug := range s {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON 序列化为有序数组
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON 从数组反序列化
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var slugs []string
	if err := json.Unmarshal(data, &slugs); err != nil {
		return err
	}
	*s = NewPermissionSet(slugs...)
	return nil
}
