package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// CustomerIDHeader carries the caller identity. Authentication happens
	// upstream; by the time a request reaches this service the gateway has
	// already resolved the customer.
	CustomerIDHeader = "X-Customer-ID"
	// ContextKeyCustomerID is the gin context key for the customer identity
	ContextKeyCustomerID = "customer_id"
)

// CustomerID extracts the customer identity header and stores it on the
// request context. Handlers reject requests without it.
func CustomerID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(CustomerIDHeader)); id != "" {
			c.Set(ContextKeyCustomerID, id)
		}
		c.Next()
	}
}

// GetCustomerID returns the customer identity stored by CustomerID
func GetCustomerID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyCustomerID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
