package loader

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/Carmen-Shannon/foreground/common"
	"github.com/Carmen-Shannon/foreground/engine/renderer/material"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// extractImages resolves every image of the document to an ImportedTexture without decoding it. Images in a
// buffer view or a data URI carry their bytes; external images carry a path relative to dir.
// An image that cannot be resolved is logged and left nil.
//
// Parameters:
//   - doc: the decoded document
//   - dir: the directory external URIs are relative to, empty for stream imports
//
// Returns:
//   - []*common.ImportedTexture: the textures indexed like doc.Images
func extractImages(doc *gltf.Document, dir string) []*common.ImportedTexture {
	images := make([]*common.ImportedTexture, len(doc.Images))
	for i, img := range doc.Images {
		tex := &common.ImportedTexture{
			Name:     common.Coalesce(img.Name, fmt.Sprintf("image%d", i)),
			MimeType: img.MimeType,
		}
		switch {
		case img.BufferView != nil:
			data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				log.Printf("[Loader] image %q: %v", tex.Name, err)
				continue
			}
			tex.Data = data
		case img.IsEmbeddedResource():
			data, err := img.MarshalData()
			if err != nil {
				log.Printf("[Loader] image %q: %v", tex.Name, err)
				continue
			}
			tex.Data = data
		case img.URI != "" && dir != "":
			tex.Path = filepath.Join(dir, filepath.FromSlash(img.URI))
		default:
			log.Printf("[Loader] image %q has no resolvable source", tex.Name)
			continue
		}
		images[i] = tex
	}
	return images
}

// textureImage follows a texture index to its image.
func textureImage(doc *gltf.Document, images []*common.ImportedTexture, textureIndex int) *common.ImportedTexture {
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil
	}
	src := doc.Textures[textureIndex].Source
	if src == nil || *src >= len(images) {
		return nil
	}
	return images[*src]
}

// extractMaterials converts the metallic-roughness materials of the document into BasicMaterials.
// Materials without a metallic-roughness block get the glTF defaults.
//
// Parameters:
//   - doc: the decoded document
//   - images: the resolved images indexed like doc.Images
//
// Returns:
//   - []material.BasicMaterial: the materials indexed like doc.Materials
func extractMaterials(doc *gltf.Document, images []*common.ImportedTexture) []material.BasicMaterial {
	materials := make([]material.BasicMaterial, len(doc.Materials))
	for i, gm := range doc.Materials {
		opts := []material.MaterialBuilderOption{
			material.WithName(common.Coalesce(gm.Name, fmt.Sprintf("material%d", i))),
		}
		pbr := gm.PBRMetallicRoughness
		if pbr == nil {
			pbr = &gltf.PBRMetallicRoughness{}
		}
		cf := pbr.BaseColorFactorOrDefault()
		opts = append(opts,
			material.WithBaseColor([4]float32{float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3])}),
			material.WithMetallic(float32(pbr.MetallicFactorOrDefault())),
			material.WithRoughness(float32(pbr.RoughnessFactorOrDefault())),
		)
		if pbr.BaseColorTexture != nil {
			if tex := textureImage(doc, images, pbr.BaseColorTexture.Index); tex != nil {
				opts = append(opts, material.WithBaseColorTexture(tex))
			}
		}
		if pbr.MetallicRoughnessTexture != nil {
			if tex := textureImage(doc, images, pbr.MetallicRoughnessTexture.Index); tex != nil {
				opts = append(opts, material.WithMetallicRoughnessTexture(tex))
			}
		}
		materials[i] = material.NewBasicMaterial(opts...)
	}
	return materials
}
