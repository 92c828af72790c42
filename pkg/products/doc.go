// Package products manages the club shop's product catalog: articles
// like patches, pins and club wear that members order through the
// portal. Prices are stored in euro cents; availability is a simple
// flag plus a stock count.
package products
