package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestResolver() *Resolver {
	return NewResolver(DefaultAliasTable())
}

func TestResolveDepartment(t *testing.T) {
	r := newTestResolver()

	// 规范枚举直接命中
	assert.Equal(t, DeptInternalMedicine, r.ResolveDepartment("内科"))

	// 别名归一
	assert.Equal(t, DeptCardiology, r.ResolveDepartment("心脏科"))
	assert.Equal(t, DeptCardiology, r.ResolveDepartment("心内科"))

	// 带空白
	assert.Equal(t, DeptNeurology, r.ResolveDepartment(" 神经内科 "))

	// 未知返回空
	assert.Equal(t, Department(""), r.ResolveDepartment("占星科"))
	assert.Equal(t, Department(""), r.ResolveDepartment(""))
}

func TestResolveDocumentType(t *testing.T) {
	r := newTestResolver()

	assert.Equal(t, DocClinicalGuideline, r.ResolveDocumentType("临床指南"))
	assert.Equal(t, DocClinicalGuideline, r.ResolveDocumentType("诊疗规范"))
	assert.Equal(t, DocDrugManual, r.ResolveDocumentType("药品说明"))
	assert.Equal(t, DocumentType(""), r.ResolveDocumentType("会议纪要"))
}

func TestResolveDiseaseCategory(t *testing.T) {
	r := newTestResolver()

	// 历史数据里的 "精神疾病"/"精神障碍" 都要归一到 ICD-11 分类
	assert.Equal(t, DiseaseMental, r.ResolveDiseaseCategory("精神疾病"))
	assert.Equal(t, DiseaseMental, r.ResolveDiseaseCategory("精神障碍"))
	assert.Equal(t, DiseaseMental, r.ResolveDiseaseCategory("精神、行为和神经发育障碍"))

	assert.Equal(t, DiseaseCirculatory, r.ResolveDiseaseCategory("心血管疾病"))
	assert.Equal(t, DiseaseNeoplasms, r.ResolveDiseaseCategory("癌症"))
	assert.Equal(t, DiseaseCategory(""), r.ResolveDiseaseCategory("水逆"))
}
