package wfs

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/atlasdatatech/wfsd/geometry"
	"github.com/atlasdatatech/wfsd/store"
	"github.com/pborman/uuid"
)

const storageSRID = 4326

// ExecuteTransaction parses and executes a WFS-T Transaction request,
// returning the response XML (success or ExceptionReport) ready to write
// back to the client (§4.F). Use ExecuteTransactionErr when the caller also
// needs the underlying error to pick an HTTP status.
func ExecuteTransaction(ctx context.Context, db *store.DB, body []byte) string {
	out, _ := ExecuteTransactionErr(ctx, db, body)
	return out
}

// ExecuteTransactionErr is ExecuteTransaction plus the error (if any) that
// produced the ExceptionReport, so the request boundary can map it to an
// HTTP status via StatusForErr (§6, §7). err is nil on success.
func ExecuteTransactionErr(ctx context.Context, db *store.DB, body []byte) (out string, err error) {
	root, perr := parseTxTree(body)
	if perr != nil {
		werr := Error{Code: CodeInvalidParameterValue, Message: "Malformed XML: " + perr.Error()}
		return ExceptionReport(werr.Code, werr.Message), werr
	}
	if root.Local != "Transaction" {
		werr := Error{Code: CodeOperationNotSupported, Message: "Expected wfs:Transaction, got " + root.Local}
		return ExceptionReport(werr.Code, werr.Message), werr
	}

	var inserted []insertedFeature
	var totalUpdated, totalDeleted int
	affected := map[int64]bool{}

	err = db.WithTx(ctx, func(tx *store.Tx) error {
		for _, child := range root.Children {
			switch child.Local {
			case "Insert":
				results, layerIDs, err := handleInsert(ctx, tx, child)
				if err != nil {
					return err
				}
				inserted = append(inserted, results...)
				for id := range layerIDs {
					affected[id] = true
				}
			case "Update":
				count, layerID, err := handleUpdate(ctx, tx, child)
				if err != nil {
					return err
				}
				totalUpdated += count
				if layerID != 0 {
					affected[layerID] = true
				}
			case "Delete":
				count, layerID, err := handleDelete(ctx, tx, child)
				if err != nil {
					return err
				}
				totalDeleted += count
				if layerID != 0 {
					affected[layerID] = true
				}
			}
		}
		for id := range affected {
			if err := tx.UpdateLayerStats(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if werr, ok := err.(Error); ok {
			return ExceptionReport(werr.Code, werr.Message), werr
		}
		werr := Error{Code: CodeNoApplicableCode, Message: "Transaction failed: " + err.Error()}
		return ExceptionReport(werr.Code, werr.Message), werr
	}

	return buildTransactionResponse(inserted, totalUpdated, totalDeleted), nil
}

type insertedFeature struct {
	layerName string
	fid       string
}

func handleInsert(ctx context.Context, tx *store.Tx, insertNode *txNode) ([]insertedFeature, map[int64]bool, error) {
	var results []insertedFeature
	layerIDs := map[int64]bool{}

	for _, featureElem := range insertNode.Children {
		layerName := featureElem.Local
		layer, err := getLayerOrWfsError(ctx, tx.GetLayerByName, layerName)
		if err != nil {
			return nil, nil, err
		}
		layerIDs[layer.ID] = true

		fid := featureElem.Attrs["id"]
		if fid == "" {
			fid = uuid.New()
		}
		if strings.HasPrefix(fid, layerName+".") {
			fid = fid[len(layerName)+1:]
		}

		var geomWKB []byte
		var bbox *store.BBox
		properties := map[string]interface{}{}

		for _, child := range featureElem.Children {
			if child.Local == "geometry" || child.Local == "the_geom" {
				if gmlElem := findGMLGeometry(child); gmlElem != nil {
					g, b, err := parseAndReprojectGML(gmlElem)
					if err != nil {
						return nil, nil, err
					}
					geomWKB, bbox = g, b
				}
			} else if geometry.IsGMLGeometryTag(child.Local) {
				g, b, err := parseAndReprojectGML(child)
				if err != nil {
					return nil, nil, err
				}
				geomWKB, bbox = g, b
			} else {
				properties[child.Local] = child.Text
			}
		}

		f := &store.Feature{
			LayerID:    layer.ID,
			FID:        fid,
			Geometry:   geomWKB,
			Properties: properties,
		}
		if bbox != nil {
			f.BBoxMinX, f.BBoxMinY, f.BBoxMaxX, f.BBoxMaxY = &bbox.MinX, &bbox.MinY, &bbox.MaxX, &bbox.MaxY
		}
		if err := tx.InsertFeature(ctx, f); err != nil {
			return nil, nil, err
		}
		results = append(results, insertedFeature{layerName: layerName, fid: fid})
	}

	return results, layerIDs, nil
}

func handleUpdate(ctx context.Context, tx *store.Tx, updateNode *txNode) (int, int64, error) {
	typeName := updateNode.Attrs["typeName"]
	if typeName == "" {
		typeName = updateNode.Attrs["typeNames"]
	}
	layer, err := getLayerOrWfsError(ctx, tx.GetLayerByName, typeName)
	if err != nil {
		return 0, 0, err
	}

	propUpdates := map[string]interface{}{}
	var geomWKB []byte
	var bbox *store.BBox

	for _, prop := range updateNode.Children {
		if prop.Local != "Property" {
			continue
		}
		ref := prop.child("ValueReference")
		val := prop.child("Value")
		if ref == nil {
			continue
		}
		fieldName := strings.TrimSpace(ref.Text)

		if fieldName == "geometry" || fieldName == "the_geom" {
			if val != nil {
				if gmlElem := findGMLGeometry(val); gmlElem != nil {
					g, b, err := parseAndReprojectGML(gmlElem)
					if err != nil {
						return 0, 0, err
					}
					geomWKB, bbox = g, b
				}
			}
		} else {
			var v interface{}
			if val != nil {
				v = val.Text
			}
			propUpdates[fieldName] = v
		}
	}

	fids := parseResourceIDs(updateNode, layer.Name)
	if len(fids) == 0 {
		return 0, layer.ID, nil
	}

	updated := 0
	for _, fid := range fids {
		existing, err := tx.GetFeature(ctx, layer.ID, fid)
		if err != nil {
			if _, ok := err.(store.ErrNotFound); ok {
				continue
			}
			return 0, 0, err
		}

		var properties map[string]interface{}
		if len(propUpdates) > 0 {
			properties = existing.Properties
			if properties == nil {
				properties = map[string]interface{}{}
			}
			for k, v := range propUpdates {
				properties[k] = v
			}
		}

		if properties == nil && geomWKB == nil {
			continue
		}
		if err := tx.UpdateFeature(ctx, layer.ID, fid, geomWKB, properties, bbox); err != nil {
			return 0, 0, err
		}
		updated++
	}

	return updated, layer.ID, nil
}

func handleDelete(ctx context.Context, tx *store.Tx, deleteNode *txNode) (int, int64, error) {
	typeName := deleteNode.Attrs["typeName"]
	if typeName == "" {
		typeName = deleteNode.Attrs["typeNames"]
	}
	layer, err := getLayerOrWfsError(ctx, tx.GetLayerByName, typeName)
	if err != nil {
		return 0, 0, err
	}

	fids := parseResourceIDs(deleteNode, layer.Name)
	if len(fids) == 0 {
		return 0, layer.ID, nil
	}

	deleted := 0
	for _, fid := range fids {
		if err := tx.DeleteFeature(ctx, layer.ID, fid); err != nil {
			if _, ok := err.(store.ErrNotFound); ok {
				continue
			}
			return 0, 0, err
		}
		deleted++
	}
	return deleted, layer.ID, nil
}

func getLayerOrWfsError(ctx context.Context, lookup func(context.Context, string) (store.Layer, error), name string) (store.Layer, error) {
	layer, err := lookup(ctx, name)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); ok {
			return store.Layer{}, Error{Code: CodeInvalidParameterValue, Message: "Unknown feature type: '" + name + "'"}
		}
		return store.Layer{}, err
	}
	return layer, nil
}

// parseAndReprojectGML parses a GML geometry element, reprojects it to the
// storage CRS if its srsName differs, and returns its WKB and bbox.
func parseAndReprojectGML(n *txNode) ([]byte, *store.BBox, error) {
	g, srid, err := geometry.FromGML([]byte(n.toXML()))
	if err != nil {
		return nil, nil, err
	}
	if srid != storageSRID {
		g, err = geometry.ReprojectGeometry(g, srid, storageSRID, geometry.WebMercatorReprojector{})
		if err != nil {
			return nil, nil, err
		}
	}
	wkb, err := geometry.EncodeWKB(g)
	if err != nil {
		return nil, nil, err
	}
	minx, miny, maxx, maxy, err := geometry.Bounds(g)
	if err != nil {
		return nil, nil, err
	}
	return wkb, &store.BBox{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy}, nil
}

func findGMLGeometry(parent *txNode) *txNode {
	for _, c := range parent.Children {
		if geometry.IsGMLGeometryTag(c.Local) {
			return c
		}
	}
	return nil
}

// parseResourceIDs collects fes:ResourceId/@rid values from any
// fes:Filter descendant, stripping a "<layer>." prefix when present.
func parseResourceIDs(elem *txNode, layerName string) []string {
	var fids []string
	var walk func(n *txNode, inFilter bool)
	walk = func(n *txNode, inFilter bool) {
		if n.Local == "Filter" {
			inFilter = true
		}
		if inFilter && n.Local == "ResourceId" {
			raw := n.Attrs["rid"]
			if strings.HasPrefix(raw, layerName+".") {
				raw = raw[len(layerName)+1:]
			}
			fids = append(fids, raw)
		}
		for _, c := range n.Children {
			walk(c, inFilter)
		}
	}
	walk(elem, false)
	return fids
}

func buildTransactionResponse(inserted []insertedFeature, updated, deleted int) string {
	var insertResults strings.Builder
	if len(inserted) > 0 {
		insertResults.WriteString(`<wfs:InsertResults>`)
		for _, f := range inserted {
			insertResults.WriteString(`<wfs:Feature><fes:ResourceId rid="` + escapeXMLText(f.layerName) + `.` + escapeXMLText(f.fid) + `"/></wfs:Feature>`)
		}
		insertResults.WriteString(`</wfs:InsertResults>`)
	}

	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<wfs:TransactionResponse xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:fes="http://www.opengis.net/fes/2.0" version="2.0.0">` +
		`<wfs:TransactionSummary>` +
		`<wfs:totalInserted>` + strconv.Itoa(len(inserted)) + `</wfs:totalInserted>` +
		`<wfs:totalUpdated>` + strconv.Itoa(updated) + `</wfs:totalUpdated>` +
		`<wfs:totalDeleted>` + strconv.Itoa(deleted) + `</wfs:totalDeleted>` +
		`</wfs:TransactionSummary>` +
		insertResults.String() +
		`</wfs:TransactionResponse>`
}

// ── minimal local-name-addressed XML tree, mirroring the geometry codec's
// gmlNode: the Insert feature tag is data-driven (it's the layer name), so
// a fixed struct can't describe it.

type txNode struct {
	Local    string
	Attrs    map[string]string
	Children []*txNode
	Text     string
}

func (n *txNode) child(local string) *txNode {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

func (n *txNode) toXML() string {
	var b strings.Builder
	b.WriteString("<" + n.Local)
	for k, v := range n.Attrs {
		b.WriteString(" " + k + `="` + escapeXMLText(v) + `"`)
	}
	if len(n.Children) == 0 && strings.TrimSpace(n.Text) == "" {
		b.WriteString("/>")
		return b.String()
	}
	b.WriteString(">")
	b.WriteString(escapeXMLText(n.Text))
	for _, c := range n.Children {
		b.WriteString(c.toXML())
	}
	b.WriteString("</" + n.Local + ">")
	return b.String()
}

func parseTxTree(data []byte) (*txNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*txNode
	var root *txNode

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &txNode{Local: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				p := stack[len(stack)-1]
				p.Children = append(p.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}
