package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/query"
)

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.CustomerFilter{
		Status:      model.PartyStatus(q.Get("status")),
		WithBalance: queryBool(r, "with_balance"),
		Search:      q.Get("search"),
	}
	if v := q.Get("min_balance"); v != "" {
		minBalance, err := decimal.NewFromString(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: min_balance", errBadRequest))
			return
		}
		f.MinBalance = minBalance
	}
	list, err := s.app.Parties.ListCustomers(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in model.Customer
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.app.Parties.CreateCustomer(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "customer.create", c.ID, "", c.Name)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.app.Parties.GetCustomer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var in model.Customer
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	c, err := s.app.Parties.UpdateCustomer(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "customer.update", c.ID, "", c.Name)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	if err := s.app.Parties.DeleteCustomer(r.Context(), customerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "customer.delete", customerID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) customerInvoices(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]
	if _, err := s.app.Parties.GetCustomer(r.Context(), customerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.app.Invoices.List(r.Context(), query.InvoiceFilter{CustomerID: customerID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.app.Parties.ListVendors(r.Context(), query.VendorFilter{
		Status:      model.PartyStatus(q.Get("status")),
		WithBalance: queryBool(r, "with_balance"),
		Search:      q.Get("search"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createVendor(w http.ResponseWriter, r *http.Request) {
	var in model.Vendor
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.app.Parties.CreateVendor(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "vendor.create", v.ID, "", v.Name)
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) getVendor(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Parties.GetVendor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) updateVendor(w http.ResponseWriter, r *http.Request) {
	var in model.Vendor
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	v, err := s.app.Parties.UpdateVendor(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "vendor.update", v.ID, "", v.Name)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deleteVendor(w http.ResponseWriter, r *http.Request) {
	vendorID := mux.Vars(r)["id"]
	if err := s.app.Parties.DeleteVendor(r.Context(), vendorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "vendor.delete", vendorID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.app.Inventory.List(r.Context(), query.ProductFilter{
		Category: q.Get("category"),
		LowStock: queryBool(r, "low_stock"),
		Search:   q.Get("search"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in model.Product
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.app.Inventory.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product.create", p.ID, "", p.SKU)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) lowStock(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Inventory.LowStock(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Inventory.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.Product
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	p, err := s.app.Inventory.Update(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product.update", p.ID, "", p.SKU)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	if err := s.app.Inventory.Delete(r.Context(), productID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product.delete", productID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
	Date   Date            `json:"date"`
}

type adjustResponse struct {
	Product model.Product `json:"product"`
	EntryID string        `json:"entry_id,omitempty"`
}

func (s *Server) adjustProduct(w http.ResponseWriter, r *http.Request) {
	var in adjustRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	date := in.Date.Time
	if date.IsZero() {
		date = s.now().UTC()
	}
	p, entryID, err := s.app.Inventory.Adjust(r.Context(), mux.Vars(r)["id"], in.Delta, in.Reason, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "product.adjust", p.ID, entryID, fmt.Sprintf("%s %s", in.Delta.String(), in.Reason))
	writeJSON(w, http.StatusOK, adjustResponse{Product: p, EntryID: entryID})
}
