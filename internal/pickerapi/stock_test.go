package pickerapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCategories_Shapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"rows under categories", `{"categories":[{"category":"Dairy","sub_categories":["Milk","Cheese"]},{"name":"Bakery","subCategories":[]},{"sub_categories":["orphan"]}]}`},
		{"rows under data", `{"data":[{"key":"Dairy","sub_categories":["Milk","Cheese"]},{"category":"Bakery"}]}`},
		{"bare rows", `[{"category":"Dairy","sub_categories":["Milk","Cheese"]},{"category":"Bakery","sub_categories":null}]`},
		{"flat object", `{"Dairy":["Milk","Cheese"],"Bakery":"not a list"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, reqs := newTestClient(t, jsonReply(http.StatusOK, tc.body))

			tree, err := c.ListCategories(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"Milk", "Cheese"}, tree["Dairy"])
			assert.Equal(t, []string{}, tree["Bakery"])
			assert.Len(t, tree, 2)
			assert.Equal(t, "/api/dashboard/stock/categories", (*reqs)[0].Path)
		})
	}
}

func TestListProducts_QueryAndPage(t *testing.T) {
	body := `{"products":[
	  {"id":1,"name":"חלב","display_name_en":"Milk","price":"9.90","stock_amount":12,"stock_unit":"יח'","category":"Dairy","sub_category":"Milk"},
	  {"id":2,"name":"Cheese","price":null,"stockUnit":"ק\"ג"}
	],"next_cursor":"c123","total_count":"57"}`
	c, reqs := newTestClient(t, jsonReply(http.StatusOK, body))

	page, err := c.ListProducts(context.Background(), ProductQuery{Category: "Dairy"})
	require.NoError(t, err)

	got := (*reqs)[0]
	assert.Equal(t, "40", got.Query["limit"])
	assert.Equal(t, "Dairy", got.Query["category"])
	_, hasQ := got.Query["q"]
	assert.False(t, hasQ, "empty query is not sent")
	_, hasCursor := got.Query["cursor"]
	assert.False(t, hasCursor)

	require.Len(t, page.Products, 2)
	assert.Equal(t, "c123", page.NextCursor)
	require.NotNil(t, page.TotalCount)
	assert.EqualValues(t, 57, *page.TotalCount)

	milk := page.Products[0]
	assert.Equal(t, "Milk", milk.DisplayNameEn)
	assert.True(t, milk.Price.Equal(decimal.RequireFromString("9.9")))
	assert.Equal(t, "unit", milk.StockUnit)
	assert.Equal(t, "Milk", *milk.SubCategory)

	cheese := page.Products[1]
	assert.Nil(t, cheese.Price)
	assert.Equal(t, "kg", cheese.StockUnit)
}

func TestListProducts_SendsCursor(t *testing.T) {
	c, reqs := newTestClient(t, jsonReply(http.StatusOK, `{"products":[],"next_cursor":null}`))

	page, err := c.ListProducts(context.Background(), ProductQuery{Query: "mi", Cursor: "c123", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	assert.Nil(t, page.TotalCount)

	got := (*reqs)[0]
	assert.Equal(t, "c123", got.Query["cursor"])
	assert.Equal(t, "mi", got.Query["q"])
	assert.Equal(t, "10", got.Query["limit"])
}

func TestCreateProduct_Body(t *testing.T) {
	c, reqs := newTestClient(t, jsonReply(http.StatusCreated, `{"product":{"id":99,"name":"Milk"}}`))

	p, err := c.CreateProduct(context.Background(), ProductInput{
		Name:          "Milk",
		DisplayNameEn: "Milk 3%",
		Price:         decimal.RequireFromString("9.90"),
		StockAmount:   decimal.NewFromInt(12),
		Category:      "Dairy",
		SubCategory:   "Milk",
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.EqualValues(t, 99, p.ID)

	got := (*reqs)[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/dashboard/stock/products", got.Path)
	assert.EqualValues(t, 3, got.Body["shop_id"])
	assert.EqualValues(t, 9.9, got.Body["price"], "price goes out as a number")
	assert.EqualValues(t, 12, got.Body["stock_amount"])
	assert.Equal(t, "Milk", got.Body["sub_category"])
	_, hasUnit := got.Body["stock_unit"]
	assert.False(t, hasUnit)
}

func TestUpdateProduct_OnlyChangedFields(t *testing.T) {
	c, reqs := newTestClient(t, jsonReply(http.StatusOK, `{"id":5}`))

	price := decimal.RequireFromString("4.5")
	_, err := c.UpdateProduct(context.Background(), 5, ProductPatch{Price: &price})
	require.NoError(t, err)

	got := (*reqs)[0]
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/api/dashboard/stock/products/5", got.Path)
	assert.Len(t, got.Body, 2)
	assert.EqualValues(t, 4.5, got.Body["price"])
	assert.EqualValues(t, 3, got.Body["shop_id"])
}

func TestDeleteProduct_ShopInQuery(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteProduct(context.Background(), 8))
	got := (*reqs)[0]
	assert.Equal(t, http.MethodDelete, got.Method)
	assert.Equal(t, "/api/dashboard/stock/products/8", got.Path)
	assert.Equal(t, "3", got.Query["shop_id"])
}

func TestNormalizeStockUnit(t *testing.T) {
	assert.Equal(t, "kg", NormalizeStockUnit(`ק"ג`))
	assert.Equal(t, "kg", NormalizeStockUnit("ק״ג"))
	assert.Equal(t, "unit", NormalizeStockUnit("units"))
	assert.Equal(t, "unit", NormalizeStockUnit("יח׳"))
	assert.Equal(t, "box", NormalizeStockUnit("box"))
	assert.Equal(t, "", NormalizeStockUnit(" "))
}
