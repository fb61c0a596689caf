package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page describes one page of a listing. Number is 1-based.
type Page struct {
	Number  int
	PerPage int
	Total   int64
}

// PageFromQuery reads ?page= and falls back to the first page on anything
// that is not a positive integer.
func PageFromQuery(c *gin.Context, perPage int) Page {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		n = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return Page{Number: n, PerPage: perPage}
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}

func (p Page) Pages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

func (p Page) HasPrev() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.Pages() }

func (p Page) PrevNum() int { return p.Number - 1 }

func (p Page) NextNum() int { return p.Number + 1 }
