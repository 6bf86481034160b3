package application

import (
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/storefront/internal/catalog/domain"
)

func demo(name, desc string, price int64, category, brand string, stock int64, image string) domain.Draft {
	return domain.Draft{
		Name:        name,
		Description: desc,
		Price:       decimal.NewFromInt(price),
		Category:    category,
		Brand:       &brand,
		Stock:       stock,
		Images:      []string{image},
	}
}

// DemoProducts is the catalog used by the seed endpoint.
func DemoProducts() []domain.Draft {
	u := func(id string) string { return "https://images.unsplash.com/photo-" + id + "?w=400&h=400&fit=crop" }
	return []domain.Draft{
		demo("iPhone 15", "Latest Apple smartphone", 999, "Electronics", "Apple", 50, u("1592750475338-74b7b21085ab")),
		demo("Samsung Galaxy S24", "Android flagship", 899, "Electronics", "Samsung", 40, u("1610945415295-d9bbf067e59c")),
		demo("MacBook Pro", "14-inch M3 chip", 1999, "Electronics", "Apple", 25, u("1517336714731-489689fd1ca8")),
		demo("AirPods Pro", "Wireless noise-cancelling earbuds", 249, "Electronics", "Apple", 100, u("1600294037681-c80b4cb5b434")),
		demo("Nike Air Max", "Classic running shoes", 120, "Clothing", "Nike", 80, u("1542291026-7eec264c27ff")),
		demo("Adidas Hoodie", "Comfortable cotton hoodie", 65, "Clothing", "Adidas", 60, u("1556821840-3a63f95609a7")),
		demo("Levi's Jeans", "Classic 501 jeans", 89, "Clothing", "Levi's", 45, u("1542272604-787c3835535d")),
		demo("Instant Pot", "Multi-use pressure cooker", 99, "Home & Kitchen", "Instant Pot", 30, u("1585515320310-259814833e62")),
		demo("Dyson Vacuum", "Cordless stick vacuum", 399, "Home & Kitchen", "Dyson", 20, u("1558317374-067fb5f30001")),
		demo("Air Fryer", "Digital air fryer oven", 129, "Home & Kitchen", "Ninja", 35, u("1626082927389-6cd097cdc6ec")),
		demo("Yoga Mat", "Non-slip exercise mat", 29, "Sports", "Manduka", 75, u("1601925260368-ae2f83cf8b7f")),
		demo("Dumbbells Set", "Adjustable weights 5-50 lbs", 299, "Sports", "Bowflex", 15, u("1534438327276-14e5300c3a48")),
		demo("Treadmill", "Folding electric treadmill", 599, "Sports", "NordicTrack", 10, u("1576678927484-cc907957088c")),
		demo("Atomic Habits", "Self-improvement bestseller", 18, "Books", "Penguin", 200, u("1544947950-fa07a98d237f")),
		demo("The Great Gatsby", "Classic American novel", 12, "Books", "Scribner", 150, u("1512820790803-83ca734da794")),
		demo("Python Crash Course", "Learn Python programming", 35, "Books", "No Starch Press", 85, u("1532012197267-da84d127e765")),
		demo("LEGO Classic Set", "Creative building blocks", 39, "Toys", "LEGO", 120, u("1587654780291-39c9404d746b")),
		demo("Barbie Doll", "Fashion doll with accessories", 25, "Toys", "Mattel", 90, u("1613682927083-e8c9cc59a44b")),
		demo("RC Car", "Remote control racing car", 79, "Toys", "Traxxas", 25, u("1594787318286-3d835c1d207f")),
	}
}
