package utils

// SliceContains - utility-function to check wether an element is part of an array
func SliceContains[V comparable](search V, data []V) bool {
	for _, value := range data {
		if value == search {
			return true
		}
	}
	return false
}

// SlicesIntersect - Check if the two slices share at least one element
func SlicesIntersect[V comparable](a []V, b []V) bool {
	for _, value := range a {
		if SliceContains(value, b) {
			return true
		}
	}
	return false
}

func RemoveIndex[V comparable](s []V, index int) []V {
	return append(s[:index], s[index+1:]...)
}
