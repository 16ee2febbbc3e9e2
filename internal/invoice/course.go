package invoice

import "strings"

// CourseSKUPrefix marks order lines that are course bookings rather than
// physical products. Those lines get a detail block on the invoice.
const CourseSKUPrefix = "CRS-"

// CourseDetail is parsed from product-name conventions used at checkout:
// an optional parenthesized date suffix, a " - " separator before the
// package label, and a "deposit" keyword when only a deposit was paid.
// The token rules are load-bearing: product names are the only place this
// information survives, so the same conventions must hold on both sides.
type CourseDetail struct {
	Course  string
	Package string
	Date    string
	Deposit bool
}

func isCourseLine(sku string) bool {
	return strings.HasPrefix(sku, CourseSKUPrefix)
}

func parseCourseDetail(name string) CourseDetail {
	detail := CourseDetail{
		Deposit: strings.Contains(strings.ToLower(name), "deposit"),
	}

	rest := strings.TrimSpace(name)
	if strings.HasSuffix(rest, ")") {
		if open := strings.LastIndex(rest, "("); open >= 0 {
			detail.Date = strings.TrimSpace(rest[open+1 : len(rest)-1])
			rest = strings.TrimSpace(rest[:open])
		}
	}

	if course, pkg, found := strings.Cut(rest, " - "); found {
		detail.Course = strings.TrimSpace(course)
		detail.Package = strings.TrimSpace(pkg)
	} else {
		detail.Course = rest
	}

	return detail
}
