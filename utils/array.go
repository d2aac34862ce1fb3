package utils

import (
	"strings"
)

func JoinEnumsAsString[T ~string](enumList []T, separator string) string {
	items := make([]string, len(enumList))
	for i := range enumList {
		items[i] = string(enumList[i])
	}
	return strings.Join(items, separator)
}

func SplitStringToEnums[T ~string](joined string, separator string) []T {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, separator)
	items := make([]T, 0, len(parts))
	for i := range parts {
		trimmed := strings.TrimSpace(parts[i])
		if trimmed == "" {
			continue
		}
		items = append(items, T(trimmed))
	}
	return items
}
