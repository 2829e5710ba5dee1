package main

import (
	_ "procurement/api/swagger" // swagger docs
)

// @title           Procurement API
// @version         1.0
// @description     Purchase requests, approvals, monthly budgets, purchase orders and goods receipts.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	Execute()
}
