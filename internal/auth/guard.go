package auth

import "marketplace-catalog-service/internal/domain"

// CanCreate reports whether the caller may create products.
// Only the shop_owner role qualifies; nil claims always deny.
func CanCreate(claims *Claims) bool {
	if claims == nil {
		return false
	}
	return claims.Role == RoleShopOwner
}

// CanMutate reports whether the caller may update or delete the given
// product (or its images).
//
// When the token carries a non-empty shop_ids list, the product's shop must
// be in it. Tokens without a shop list fall back to comparing the product's
// shop id against the subject id: a deliberate compatibility rule that
// assumes the user id doubles as the shop id for such tokens. Callers
// relying on the fallback should be aware of that coupling.
func CanMutate(claims *Claims, product *domain.Product) bool {
	if claims == nil || product == nil {
		return false
	}
	if len(claims.ShopIDs) > 0 {
		for _, id := range claims.ShopIDs {
			if id == product.ShopID {
				return true
			}
		}
		return false
	}
	return product.ShopID == claims.UserID
}
